package personas

import "time"

// Training status values. Transitions are monotonic:
// training -> ready | failed, never back.
const (
	StatusTraining = "training"
	StatusReady    = "ready"
	StatusFailed   = "failed"
)

// Persona types accepted on creation.
const (
	TypeMan    = "man"
	TypeWoman  = "woman"
	TypePerson = "person"
	TypeStyle  = "style"
)

// Persona is a named placeholder for a simulated fine-tuned likeness.
// Generation requests may reference a ready persona to influence prompts.
type Persona struct {
	ID             uint     `gorm:"primaryKey"`
	UserID         uint     `gorm:"not null;index:idx_personas_user_id"`
	Name           string   `gorm:"not null"`
	Type           string   `gorm:"type:varchar(10);not null"`
	Status         string   `gorm:"type:varchar(10);not null;default:'training'"`
	Progress       int      `gorm:"not null;default:0"`
	TrainingImages []string `gorm:"serializer:json"`
	ThumbnailURL   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func ValidType(t string) bool {
	switch t {
	case TypeMan, TypeWoman, TypePerson, TypeStyle:
		return true
	}
	return false
}
