package catalog

import "time"

// Template is a curated prompt shown in the public gallery. PseudoPrompt is
// the display-safe variant rendered on SEO pages; Prompt is what is actually
// sent to the provider.
type Template struct {
	ID           uint   `gorm:"primaryKey"`
	Heading      string `gorm:"not null"`
	Slug         string `gorm:"not null;uniqueIndex:idx_templates_slug"`
	Prompt       string `gorm:"type:text;not null"`
	PseudoPrompt string `gorm:"type:text"`
	ImageURL     string
	Tags         []Tag `gorm:"many2many:template_tags;"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Tag struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"not null;uniqueIndex:idx_tags_name"`
}
