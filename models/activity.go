package models

import (
	"time"

	"gorm.io/gorm"
)

// Activity types
const (
	ActivityTypeCall     = "call"
	ActivityTypeEmail    = "email"
	ActivityTypeVisit    = "visit"
	ActivityTypeResearch = "research"
)

// Activity results
const (
	ActivityResultNo       = "no"
	ActivityResultFollowup = "followup"
	ActivityResultLead     = "lead"
)

// ActivityTypes lists the accepted interaction types.
var ActivityTypes = []string{
	ActivityTypeCall,
	ActivityTypeEmail,
	ActivityTypeVisit,
	ActivityTypeResearch,
}

// ActivityResults lists the accepted interaction results.
var ActivityResults = []string{
	ActivityResultNo,
	ActivityResultFollowup,
	ActivityResultLead,
}

// IsActivityType reports whether s is an accepted activity type.
func IsActivityType(s string) bool {
	for _, known := range ActivityTypes {
		if s == known {
			return true
		}
	}
	return false
}

// IsActivityResult reports whether s is an accepted activity result.
func IsActivityResult(s string) bool {
	for _, known := range ActivityResults {
		if s == known {
			return true
		}
	}
	return false
}

// Activity is one interaction record attached to a contact. The latest
// non-deleted activity (created_at DESC, id DESC) determines the contact's
// derived status.
type Activity struct {
	gorm.Model
	ContactID uint `gorm:"not null;index" json:"contact_id"`
	UserID    uint `gorm:"not null;index" json:"user_id"` // author

	Type   string `gorm:"not null" json:"type"`   // call, email, visit, research
	Result string `gorm:"not null" json:"result"` // no, followup, lead

	// Date is an optional follow-up calendar date, independent of CreatedAt
	Date    *time.Time `json:"date,omitempty"`
	Content string     `gorm:"type:text" json:"content"`

	// Metadata carries the edit_history snapshots appended on each edit
	Metadata JSONMap `gorm:"type:jsonb;serializer:json" json:"metadata,omitempty"`

	IsEdited  bool `gorm:"default:false" json:"is_edited"`
	IsDeleted bool `gorm:"default:false;index" json:"is_deleted"`

	// Relations
	Contact Contact `gorm:"foreignKey:ContactID" json:"-"`
	User    User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// AppendEditSnapshot records the current field values in the metadata
// edit_history before an edit overwrites them.
func (a *Activity) AppendEditSnapshot(editorID uint) {
	snapshot := map[string]interface{}{
		"type":      a.Type,
		"result":    a.Result,
		"content":   a.Content,
		"edited_by": editorID,
		"edited_at": time.Now().UTC().Format(time.RFC3339),
	}
	if a.Date != nil {
		snapshot["date"] = a.Date.UTC().Format(time.RFC3339)
	}

	if a.Metadata == nil {
		a.Metadata = JSONMap{}
	}
	var history []interface{}
	if raw, ok := a.Metadata.Field("edit_history"); ok {
		if items, ok := raw.([]interface{}); ok {
			history = items
		}
	}
	a.Metadata["edit_history"] = append(history, snapshot)
}
