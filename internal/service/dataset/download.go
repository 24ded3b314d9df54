package dataset

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/datashare/internal/besteffort"
	"github.com/weiwangfds/datashare/internal/database"
	apperrors "github.com/weiwangfds/datashare/internal/errors"
	"github.com/weiwangfds/datashare/internal/metrics"
	"github.com/weiwangfds/datashare/internal/service/events"
	"gorm.io/gorm"
)

// DefaultContentType served when a payload has no stored type
const DefaultContentType = "application/octet-stream"

// DownloadRequest input of Download
type DownloadRequest struct {
	DatasetID string
	// UserID optional, downloads work anonymously
	UserID    string
	ClientIP  string
	UserAgent string
}

// Download a payload ready to be written to the client
type Download struct {
	DatasetID   string
	FileName    string
	ContentType string
	Content     []byte
}

// Size exact number of bytes to transmit
func (d *Download) Size() int64 {
	return int64(len(d.Content))
}

// Download counts the attempt, records an audit event and returns the payload.
// The counter is bumped before the record is read, so attempts on file-less
// datasets are counted too. Audit and user lookup failures never fail the call.
func (s *Service) Download(ctx context.Context, req DownloadRequest) (*Download, error) {
	res := s.db.WithContext(ctx).
		Model(&database.Dataset{}).
		Where("id = ?", req.DatasetID).
		UpdateColumns(map[string]interface{}{
			"downloads":  gorm.Expr("downloads + ?", 1),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseUpdate, res.Error)
	}

	var ds database.Dataset
	if err := s.db.WithContext(ctx).Where("id = ?", req.DatasetID).First(&ds).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrDatasetNotFound)
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	s.recordDownload(ctx, &ds, req)

	if !ds.HasFile() {
		return nil, apperrors.New(apperrors.ErrNoFileAttached)
	}

	contentType := DefaultContentType
	if ds.FileContentType != nil && *ds.FileContentType != "" {
		contentType = *ds.FileContentType
	}

	metrics.DownloadsTotal.Inc()
	metrics.DownloadedBytesTotal.Add(float64(len(ds.FileContent)))

	return &Download{
		DatasetID:   ds.ID,
		FileName:    *ds.FileName,
		ContentType: contentType,
		Content:     ds.FileContent,
	}, nil
}

// recordDownload writes the audit event and announces the download
func (s *Service) recordDownload(ctx context.Context, ds *database.Dataset, req DownloadRequest) {
	fields := logrus.Fields{
		"dataset_id": ds.ID,
		"user_id":    req.UserID,
		"client_ip":  req.ClientIP,
	}

	var userID *string
	if req.UserID != "" && s.users != nil {
		besteffort.Run(ctx, "user_lookup", fields, func(ctx context.Context) error {
			u, err := s.users.Get(ctx, req.UserID)
			if err != nil {
				return err
			}
			userID = &u.ID
			return nil
		})
	}

	besteffort.Run(ctx, "download_event", fields, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Create(&database.DownloadEvent{
			DatasetID: ds.ID,
			UserID:    userID,
			IPAddress: req.ClientIP,
			UserAgent: req.UserAgent,
		}).Error
	})

	s.publish(ctx, events.NewEvent(events.TypeDownloaded, ds.ID, deref(userID), ds.Size))
}
