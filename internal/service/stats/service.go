// Package stats computes dashboard rollups over datasets and download events.
package stats

import (
	"context"
	"sort"
	"time"

	"github.com/weiwangfds/datashare/internal/database"
	apperrors "github.com/weiwangfds/datashare/internal/errors"
	"gorm.io/gorm"
)

// Report sizes
const (
	recentLimit = 30
	topLimit    = 10
	reportDays  = 30
	dayLayout   = "2006-01-02"
)

// Totals process-wide rollup
type Totals struct {
	Downloads int64 `json:"downloads"`
	// Storage bytes
	Storage int64 `json:"storage"`
}

// DayCount downloads on one UTC calendar day
type DayCount struct {
	Date      string `json:"date"`
	Downloads int64  `json:"downloads"`
}

// DatasetRef dataset as shown in the report
type DatasetRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// UserRef user as shown in the report
type UserRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// RecentDownload one audit event with resolved references.
// Dataset or User is nil when the referenced row no longer exists.
type RecentDownload struct {
	ID           string      `json:"id"`
	Dataset      *DatasetRef `json:"dataset"`
	User         *UserRef    `json:"user"`
	DownloadedAt time.Time   `json:"downloadedAt"`
	IPAddress    string      `json:"ipAddress"`
	UserAgent    string      `json:"userAgent"`
}

// TopDataset dataset ranked by its download counter
type TopDataset struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Downloads int64  `json:"downloads"`
}

// DayTotal per-day count in the report
type DayTotal struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// Report admin download report
type Report struct {
	TotalDownloads  int64            `json:"totalDownloads"`
	UniqueUsers     int64            `json:"uniqueUsers"`
	UniqueDatasets  int64            `json:"uniqueDatasets"`
	RecentDownloads []RecentDownload `json:"recentDownloads"`
	MostDownloaded  []TopDataset     `json:"mostDownloaded"`
	DownloadsByDay  []DayTotal       `json:"downloadsByDay"`
}

// Service statistics queries
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService builds the service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Totals sums download counters and stored bytes across all datasets.
// Only the size and downloads columns are read.
func (s *Service) Totals(ctx context.Context) (*Totals, error) {
	rows, err := s.db.WithContext(ctx).
		Model(&database.Dataset{}).
		Select("size", "downloads").
		Rows()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	defer rows.Close()

	totals := &Totals{}
	for rows.Next() {
		var size, downloads interface{}
		if err := rows.Scan(&size, &downloads); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
		}
		totals.Storage += sizeBytes(size)
		totals.Downloads += countValue(downloads)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	return totals, nil
}

// DownloadHistory counts all download events per UTC day, oldest first
func (s *Service) DownloadHistory(ctx context.Context) ([]DayCount, error) {
	counts, err := s.countByDay(ctx, time.Time{})
	if err != nil {
		return nil, err
	}

	history := make([]DayCount, 0, len(counts))
	for _, day := range sortedDays(counts) {
		history = append(history, DayCount{Date: day, Downloads: counts[day]})
	}
	return history, nil
}

// DownloadReport builds the admin report
func (s *Service) DownloadReport(ctx context.Context) (*Report, error) {
	db := s.db.WithContext(ctx)
	report := &Report{}

	if err := db.Model(&database.DownloadEvent{}).Count(&report.TotalDownloads).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	if err := db.Model(&database.DownloadEvent{}).
		Where("user_id IS NOT NULL").
		Distinct("user_id").
		Count(&report.UniqueUsers).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	if err := db.Model(&database.DownloadEvent{}).
		Distinct("dataset_id").
		Count(&report.UniqueDatasets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	recent, err := s.recentDownloads(ctx)
	if err != nil {
		return nil, err
	}
	report.RecentDownloads = recent

	report.MostDownloaded = []TopDataset{}
	if err := db.Model(&database.Dataset{}).
		Select("id", "title", "downloads").
		Order("downloads DESC").
		Limit(topLimit).
		Scan(&report.MostDownloaded).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	since := s.now().UTC().AddDate(0, 0, -reportDays)
	counts, err := s.countByDay(ctx, since)
	if err != nil {
		return nil, err
	}
	report.DownloadsByDay = make([]DayTotal, 0, len(counts))
	for _, day := range sortedDays(counts) {
		report.DownloadsByDay = append(report.DownloadsByDay, DayTotal{Date: day, Count: counts[day]})
	}

	return report, nil
}

// recentRow flat join result
type recentRow struct {
	ID           string
	DatasetID    string
	DatasetTitle *string
	UserID       *string
	UserName     *string
	Username     *string
	DownloadedAt time.Time
	IPAddress    string
	UserAgent    string
}

func (s *Service) recentDownloads(ctx context.Context) ([]RecentDownload, error) {
	var rows []recentRow
	err := s.db.WithContext(ctx).
		Table("download_events AS e").
		Select(`e.id, e.dataset_id, d.title AS dataset_title, e.user_id,
			u.name AS user_name, u.username AS username,
			e.downloaded_at, e.ip_address, e.user_agent`).
		Joins("LEFT JOIN datasets d ON d.id = e.dataset_id").
		Joins("LEFT JOIN users u ON u.id = e.user_id").
		Order("e.downloaded_at DESC").
		Limit(recentLimit).
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	recent := make([]RecentDownload, 0, len(rows))
	for _, row := range rows {
		item := RecentDownload{
			ID:           row.ID,
			DownloadedAt: row.DownloadedAt,
			IPAddress:    row.IPAddress,
			UserAgent:    row.UserAgent,
		}
		if row.DatasetTitle != nil {
			item.Dataset = &DatasetRef{ID: row.DatasetID, Title: *row.DatasetTitle}
		}
		if row.UserID != nil && (row.UserName != nil || row.Username != nil) {
			item.User = &UserRef{ID: *row.UserID, Name: str(row.UserName), Username: str(row.Username)}
		}
		recent = append(recent, item)
	}
	return recent, nil
}

// countByDay buckets events at or after since (zero means all) by UTC day
func (s *Service) countByDay(ctx context.Context, since time.Time) (map[string]int64, error) {
	query := s.db.WithContext(ctx).Model(&database.DownloadEvent{}).Select("downloaded_at")
	if !since.IsZero() {
		query = query.Where("downloaded_at >= ?", since)
	}

	rows, err := query.Rows()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
		}
		counts[at.UTC().Format(dayLayout)]++
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	return counts, nil
}

func sortedDays(counts map[string]int64) []string {
	days := make([]string, 0, len(counts))
	for day := range counts {
		days = append(days, day)
	}
	// YYYY-MM-DD sorts chronologically as text
	sort.Strings(days)
	return days
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
