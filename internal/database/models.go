// Package database defines the persisted models and opens the gorm connection.
package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User account referenced as dataset owner and download audit subject.
// Accounts are managed by the identity service; this service only reads them.
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Name         string    `gorm:"size:100" json:"name,omitempty"`
	Username     string    `gorm:"uniqueIndex;size:50" json:"username,omitempty"`
	Email        string    `gorm:"uniqueIndex;size:255" json:"email,omitempty"`
	Password     string    `gorm:"size:255" json:"-"`
	Role         string    `gorm:"size:16;default:'user'" json:"role,omitempty"`
	ProfileImage string    `gorm:"size:500" json:"profileImage,omitempty"`
	Bio          string    `gorm:"type:text" json:"bio,omitempty"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// TableName users table
func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns an id when the caller left it empty
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Dataset a titled, typed unit of shareable content.
// The file payload lives inline in FileContent and is never serialized.
type Dataset struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	Title       string `gorm:"not null;size:255" json:"title"`
	Description string `gorm:"not null;type:text" json:"description"`
	Type        string `gorm:"not null;size:64" json:"type"`
	// Size byte length of FileContent, 0 without a file
	Size int64 `gorm:"not null;default:0" json:"size"`

	// FileID opaque token minted per upload, present iff a file is attached
	FileID          *string `gorm:"size:32" json:"fileId,omitempty"`
	FileName        *string `gorm:"size:255" json:"fileName,omitempty"`
	FileContentType *string `gorm:"size:255" json:"fileContentType,omitempty"`
	FileContent     []byte  `json:"-"`

	Downloads int64 `gorm:"not null;default:0" json:"downloads"`

	OwnerID *string `gorm:"column:user_id;size:36;index" json:"-"`
	Owner   *User   `gorm:"foreignKey:OwnerID;references:ID;constraint:OnDelete:SET NULL" json:"user,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName datasets table
func (Dataset) TableName() string {
	return "datasets"
}

// BeforeCreate assigns an id when the caller left it empty
func (d *Dataset) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// HasFile reports whether a downloadable payload is attached
func (d *Dataset) HasFile() bool {
	return d.FileName != nil && *d.FileName != "" && len(d.FileContent) > 0
}

// DownloadEvent immutable audit entry, one per download that reached the serving stage.
// DatasetID is not a foreign key: events outlive the datasets they reference.
type DownloadEvent struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	DatasetID    string    `gorm:"not null;size:36;index" json:"dataset"`
	UserID       *string   `gorm:"size:36;index" json:"user,omitempty"`
	DownloadedAt time.Time `gorm:"not null;index" json:"downloadedAt"`
	IPAddress    string    `gorm:"size:64" json:"ipAddress"`
	UserAgent    string    `gorm:"size:512" json:"userAgent"`
}

// TableName download_events table
func (DownloadEvent) TableName() string {
	return "download_events"
}

// BeforeCreate assigns an id and timestamp when missing
func (e *DownloadEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.DownloadedAt.IsZero() {
		e.DownloadedAt = time.Now().UTC()
	}
	return nil
}

// MetadataColumns dataset columns read by every query that must not load the payload
var MetadataColumns = []string{
	"id", "title", "description", "type", "size",
	"file_id", "file_name", "file_content_type",
	"downloads", "user_id", "created_at", "updated_at",
}

// OwnerSummaryColumns user columns exposed as a dataset's owner
var OwnerSummaryColumns = []string{"id", "name", "email", "profile_image"}
