package repository

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"

	"github.com/aerialworks/dronearchive/models"
)

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

const defaultActivityLimit = 50

// UploadLogRepository handles journal rows for archived uploads
type UploadLogRepository struct {
	DB *gorm.DB
}

// NewUploadLogRepository creates a new instance of UploadLogRepository
func NewUploadLogRepository(db *gorm.DB) *UploadLogRepository {
	return &UploadLogRepository{DB: db}
}

// Create appends one journal row.
func (r *UploadLogRepository) Create(entry *models.UploadLog) error {
	if err := r.DB.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create upload log entry for %s: %w", entry.StoredFilename, err)
	}
	return nil
}

// ListRecent returns the newest journal rows, optionally narrowed to one
// flight folder and/or one date. The filters are dynamic, so the query is
// assembled with squirrel rather than hand-concatenated SQL.
func (r *UploadLogRepository) ListRecent(flightFolder, date string, limit int) ([]models.UploadLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultActivityLimit
	}

	query := builder.
		Select("id", "date", "flight_folder", "stored_filename", "original_filename",
			"size_bytes", "content_type", "created_at").
		From(models.UploadLog{}.TableName()).
		OrderBy("id DESC").
		Limit(uint64(limit))
	if flightFolder != "" {
		query = query.Where(sq.Eq{"flight_folder": flightFolder})
	}
	if date != "" {
		query = query.Where(sq.Eq{"date": date})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for ListRecent: %w", err)
	}

	sqlDB, err := r.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	rows, err := sqlDB.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query upload logs: %w", err)
	}
	defer rows.Close()

	var entries []models.UploadLog
	for rows.Next() {
		var e models.UploadLog
		if err := rows.Scan(&e.ID, &e.Date, &e.FlightFolder, &e.StoredFilename,
			&e.OriginalFilename, &e.SizeBytes, &e.ContentType, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan upload log row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
