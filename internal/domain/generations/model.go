package generations

import "time"

// Generation is one persisted output image plus the request metadata that
// produced it. A row exists only for images that were actually generated
// and uploaded; CreditsCost records what was debited for this image.
type Generation struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      uint   `gorm:"not null;index:idx_generations_user_id"`
	Prompt      string `gorm:"type:text"`
	ImageURL    string `gorm:"not null"`
	PersonaID   *uint  `gorm:"index:idx_generations_persona_id"`
	AIModelID   string `gorm:"column:ai_model_id;type:varchar(64)"`
	AspectRatio string `gorm:"type:varchar(10)"`
	Resolution  string `gorm:"type:varchar(10)"`
	CreditsCost int    `gorm:"not null"`
	CreatedAt   time.Time
}
