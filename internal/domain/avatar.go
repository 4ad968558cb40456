package domain

import (
	"sort"
	"time"
)

// Avatar is a named set of face photos used as the subject of a generation.
// Photos are kept in insertion order through Position.
type Avatar struct {
	ID        string        `gorm:"type:text;primaryKey" json:"id"`
	UserID    string        `gorm:"type:text;not null;index:idx_avatars_user" json:"userId"`
	Name      string        `gorm:"type:text;not null" json:"name"`
	Photos    []AvatarPhoto `gorm:"foreignKey:AvatarID;constraint:OnDelete:CASCADE" json:"photos"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// TableName returns the database table name for Avatar.
func (Avatar) TableName() string {
	return "avatars"
}

// AvatarPhoto is one stored face photo. Its ID stays stable across edits
// so generation requests can pin a specific photo.
type AvatarPhoto struct {
	ID          string    `gorm:"type:text;primaryKey" json:"id"`
	AvatarID    string    `gorm:"type:text;not null;index:idx_avatar_photos_avatar" json:"avatarId"`
	Position    int       `gorm:"not null;default:0" json:"position"`
	ImageURL    string    `gorm:"type:text;not null" json:"imageUrl"`
	StoragePath string    `gorm:"type:text" json:"-"`
	FileName    string    `gorm:"type:text" json:"fileName"`
	FileSize    int64     `json:"fileSize"`
	MimeType    string    `gorm:"type:text" json:"mimeType"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TableName returns the database table name for AvatarPhoto.
func (AvatarPhoto) TableName() string {
	return "avatar_photos"
}

// PhotoByID returns the photo with the given id.
func (a *Avatar) PhotoByID(id string) (*AvatarPhoto, bool) {
	for i := range a.Photos {
		if a.Photos[i].ID == id {
			return &a.Photos[i], true
		}
	}
	return nil, false
}

// SortPhotos orders photos by Position, oldest first on ties.
func (a *Avatar) SortPhotos() {
	sort.SliceStable(a.Photos, func(i, j int) bool {
		if a.Photos[i].Position != a.Photos[j].Position {
			return a.Photos[i].Position < a.Photos[j].Position
		}
		return a.Photos[i].CreatedAt.Before(a.Photos[j].CreatedAt)
	})
}

// NextPosition returns the position a newly appended photo should take.
func (a *Avatar) NextPosition() int {
	next := 0
	for _, p := range a.Photos {
		if p.Position >= next {
			next = p.Position + 1
		}
	}
	return next
}
