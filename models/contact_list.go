package models

import (
	"gorm.io/gorm"
)

// ContactList lifecycle states
const (
	ListStatusProcessing = "processing"
	ListStatusCompleted  = "completed"
	ListStatusFailed     = "failed"
)

// Geocoding lifecycle states for a list
const (
	GeocodingStatusPending   = "pending"
	GeocodingStatusRunning   = "running"
	GeocodingStatusCompleted = "completed"
	GeocodingStatusFailed    = "failed"
)

// ContactList represents an imported collection of contacts owned by one user
type ContactList struct {
	gorm.Model
	UserID uint   `gorm:"not null;index" json:"user_id"`
	UUID   string `gorm:"uniqueIndex;not null" json:"uuid"`

	Name   string `gorm:"not null" json:"name"`
	Status string `gorm:"default:'processing'" json:"status"` // processing, completed, failed

	// Settings is the display/processing configuration document. Known keys:
	// columns (original column order), hidden_fields, title_field,
	// link_template, geocoding {fields, separator, country_suffix}.
	// Never validated beyond "is a document".
	Settings JSONMap `gorm:"type:jsonb;serializer:json" json:"settings"`

	// Metadata holds import bookkeeping: original_filename, file_size,
	// row_count, imported_at, invalid_emails.
	Metadata JSONMap `gorm:"type:jsonb;serializer:json" json:"metadata"`

	// Geocoding progress
	GeocodingStatus string `gorm:"default:''" json:"geocoding_status"` // pending, running, completed, failed
	GeocodedCount   int    `gorm:"default:0" json:"geocoded_count"`
	GeocodingTotal  int    `gorm:"default:0" json:"geocoding_total"`

	// Derived, populated by list queries
	ContactCount int64 `gorm:"->;-:migration" json:"contact_count"`

	// Relations
	User     User      `gorm:"foreignKey:UserID" json:"-"`
	Contacts []Contact `gorm:"foreignKey:ListID" json:"contacts,omitempty"`
}

// Columns returns the stored display column order from the settings
// document. The slice shape depends on whether the settings came from Go
// code or a JSON round-trip, so both are handled.
func (cl *ContactList) Columns() []string {
	raw, ok := cl.Settings.Field("columns")
	if !ok {
		return nil
	}

	switch items := raw.(type) {
	case []string:
		return items
	case []interface{}:
		cols := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok && s != "" {
				cols = append(cols, s)
			}
		}
		return cols
	default:
		return nil
	}
}

// GeocodingTemplate is the parsed form of settings.geocoding.
type GeocodingTemplate struct {
	Fields        []string `json:"fields"`
	Separator     string   `json:"separator"`
	CountrySuffix string   `json:"country_suffix"`
}

// GeocodingTemplate extracts the geocoding configuration from the settings
// document. Returns false when no usable template is configured.
func (cl *ContactList) GeocodingTemplate() (GeocodingTemplate, bool) {
	tmpl := GeocodingTemplate{Separator: ", "}

	raw, ok := cl.Settings.Field("geocoding")
	if !ok {
		return tmpl, false
	}

	// The object arrives as JSONMap from Go code and as a plain map
	// after a JSON round-trip
	var obj map[string]interface{}
	switch v := raw.(type) {
	case JSONMap:
		obj = v
	case map[string]interface{}:
		obj = v
	default:
		return tmpl, false
	}

	switch fields := obj["fields"].(type) {
	case []string:
		for _, s := range fields {
			if s != "" {
				tmpl.Fields = append(tmpl.Fields, s)
			}
		}
	case []interface{}:
		for _, f := range fields {
			if s, ok := f.(string); ok && s != "" {
				tmpl.Fields = append(tmpl.Fields, s)
			}
		}
	}
	if sep, ok := obj["separator"].(string); ok && sep != "" {
		tmpl.Separator = sep
	}
	if suffix, ok := obj["country_suffix"].(string); ok {
		tmpl.CountrySuffix = suffix
	}

	return tmpl, len(tmpl.Fields) > 0
}
