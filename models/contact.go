package models

import (
	"gorm.io/gorm"
)

// Derived contact statuses. Never stored; always recomputed from the
// latest non-deleted activity so that editing or deleting an activity
// retroactively changes the status without a migration step.
const (
	StatusNotContacted = "not_contacted"
	StatusInWorking    = "in_working"
	StatusDropped      = "dropped"
	StatusConverted    = "converted"
)

// ContactStatuses lists every derivable status value.
var ContactStatuses = []string{
	StatusNotContacted,
	StatusInWorking,
	StatusDropped,
	StatusConverted,
}

// IsContactStatus reports whether s is one of the four derived statuses.
func IsContactStatus(s string) bool {
	for _, known := range ContactStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Contact is a single imported row: a free-form document plus system flags
type Contact struct {
	gorm.Model
	ListID uint `gorm:"not null;index" json:"list_id"`

	// Data is the imported field -> value document. Arbitrary keys,
	// no schema; a key absent on one contact may exist on another.
	Data JSONMap `gorm:"type:jsonb;serializer:json" json:"data"`

	InPipeline bool `gorm:"default:false" json:"in_pipeline"`
	IsDeleted  bool `gorm:"default:false;index" json:"is_deleted"`

	// Derived columns, scanned from list queries and never migrated
	Status          string `gorm:"->;-:migration" json:"status,omitempty"`
	ActivitiesCount int64  `gorm:"->;-:migration" json:"activities_count"`

	// Relations
	List       ContactList `gorm:"foreignKey:ListID" json:"-"`
	Activities []Activity  `gorm:"foreignKey:ContactID" json:"activities,omitempty"`
}
