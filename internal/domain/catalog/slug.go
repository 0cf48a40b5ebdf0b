package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"
)

var (
	nonSlug   = regexp.MustCompile(`[^a-z0-9\-]+`)
	multiDash = regexp.MustCompile(`-+`)
)

// MakeSlug generates a URL-safe slug from a template heading.
// Example: "Corporate Headshot" -> "corporate-headshot"
func MakeSlug(heading string) string {
	base := strings.ToLower(strings.TrimSpace(heading))
	base = strings.ReplaceAll(base, " ", "-")
	base = nonSlug.ReplaceAllString(base, "")
	base = multiDash.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")

	if base == "" {
		base = "template"
	}
	return base
}

// UniqueSlug derives a slug from heading and suffixes a counter until it is
// free in the templates table. Pass db in, do NOT import persona-app/database
// here (avoids import cycle).
func UniqueSlug(db *gorm.DB, heading string) (string, error) {
	base := MakeSlug(heading)
	slug := base
	for i := 2; ; i++ {
		var count int64
		if err := db.Model(&Template{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}
