package models

import "time"

// UploadLog is one journal row per successfully archived image. The journal
// is an audit trail written after the fact by the activity recorder; it is
// never consulted to answer archive queries, which walk the filesystem.
type UploadLog struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Date             string    `gorm:"index;not null" json:"date"`
	FlightFolder     string    `gorm:"index;not null" json:"flight_folder"`
	StoredFilename   string    `gorm:"not null" json:"stored_filename"`
	OriginalFilename string    `json:"original_filename"`
	SizeBytes        int64     `json:"size_bytes"`
	ContentType      string    `json:"content_type"`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName explicitly sets the table name for GORM.
func (UploadLog) TableName() string {
	return "upload_logs"
}
