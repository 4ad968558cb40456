package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the slice.
//   - error: non-nil if marshaling fails.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
//
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (a *StringArray) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*a = StringArray{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("failed to scan StringArray")
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	if out == nil {
		out = []string{}
	}
	*a = out
	return nil
}

// MarshalJSON renders a nil array as [] so history always lists references.
func (a StringArray) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(a))
}

// Thumbnail is the immutable history record of one completed generation.
// AvatarName is a snapshot taken at generation time.
type Thumbnail struct {
	ID               string      `gorm:"type:text;primaryKey" json:"id"`
	UserID           string      `gorm:"type:text;not null;index:idx_thumbnails_user_created,priority:1" json:"userId"`
	AvatarID         string      `gorm:"type:text;not null" json:"avatarId"`
	AvatarName       string      `gorm:"type:text" json:"avatarName"`
	Prompt           string      `gorm:"type:text;not null" json:"prompt"`
	TextIdea         string      `gorm:"type:text;not null" json:"textIdea"`
	ReferenceIDs     StringArray `gorm:"column:reference_ids;type:text" json:"references"`
	AdditionalPrompt string      `gorm:"type:text" json:"additionalPrompt,omitempty"`
	ImageURL         string      `gorm:"type:text;not null" json:"imageUrl"`
	StoragePath      string      `gorm:"type:text" json:"-"`
	CreatedAt        time.Time   `gorm:"index:idx_thumbnails_user_created,priority:2" json:"createdAt"`
}

// TableName returns the database table name for Thumbnail.
func (Thumbnail) TableName() string {
	return "thumbnails"
}
