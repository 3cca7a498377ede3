package models

import (
	"gorm.io/gorm"
)

// ColumnMapping records how an uploaded file column maps to a document
// field. Mappings are replaced wholesale when saved.
type ColumnMapping struct {
	gorm.Model
	ListID uint `gorm:"not null;index" json:"list_id"`

	SourceColumn string `gorm:"not null" json:"source_column"`
	TargetField  string `gorm:"not null" json:"target_field"`
	Position     int    `gorm:"default:0" json:"position"`

	// Relations
	List ContactList `gorm:"foreignKey:ListID" json:"-"`
}
