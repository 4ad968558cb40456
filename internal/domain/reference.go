package domain

import (
	"fmt"
	"strings"
	"time"
)

// ReferenceCategory is the closed set of reference kinds.
type ReferenceCategory string

const (
	ReferenceCategoryThumbnail  ReferenceCategory = "thumbnail"
	ReferenceCategoryLogo       ReferenceCategory = "logo"
	ReferenceCategoryIcon       ReferenceCategory = "icon"
	ReferenceCategoryBackground ReferenceCategory = "background"
)

// ReferenceCategories lists every accepted category.
var ReferenceCategories = []ReferenceCategory{
	ReferenceCategoryThumbnail,
	ReferenceCategoryLogo,
	ReferenceCategoryIcon,
	ReferenceCategoryBackground,
}

// ParseReferenceCategory normalizes s and checks it against the closed set.
func ParseReferenceCategory(s string) (ReferenceCategory, error) {
	c := ReferenceCategory(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ReferenceCategories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown reference category %q", s)
}

// Reference is an auxiliary image offered to the provider as style context.
type Reference struct {
	ID          string            `gorm:"type:text;primaryKey" json:"id"`
	UserID      string            `gorm:"type:text;not null;index:idx_reference_images_user" json:"userId"`
	Category    ReferenceCategory `gorm:"type:text;not null;index:idx_reference_images_category" json:"category"`
	ImageURL    string            `gorm:"type:text;not null" json:"imageUrl"`
	StoragePath string            `gorm:"type:text" json:"-"`
	FileName    string            `gorm:"type:text" json:"fileName"`
	FileSize    int64             `json:"fileSize"`
	MimeType    string            `gorm:"type:text" json:"mimeType"`
	Description string            `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// TableName returns the database table name for Reference.
func (Reference) TableName() string {
	return "reference_images"
}
