// Package dataset stores datasets with their inline file payloads and serves downloads.
package dataset

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/datashare/internal/besteffort"
	"github.com/weiwangfds/datashare/internal/database"
	apperrors "github.com/weiwangfds/datashare/internal/errors"
	"github.com/weiwangfds/datashare/internal/service/events"
	"github.com/weiwangfds/datashare/internal/service/intake"
	"gorm.io/gorm"
)

// Mirror receives best-effort copies of payloads
type Mirror interface {
	Store(ctx context.Context, datasetID, contentType string, content []byte) error
	Remove(ctx context.Context, datasetID string) error
}

// UserLookup resolves user ids
type UserLookup interface {
	Get(ctx context.Context, id string) (*database.User, error)
}

// Upload a staged file the service may load into memory
type Upload interface {
	Load() (*intake.Blob, error)
}

// CreateRequest input of Create
type CreateRequest struct {
	Title       string
	Description string
	Type        string
	OwnerID     *string
	// File optional payload
	File Upload
}

// Validate checks the required fields are non-empty
func (r CreateRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(r.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(r.Type) == "" {
		missing = append(missing, "type")
	}
	if len(missing) > 0 {
		return apperrors.Newf(apperrors.ErrInvalidParams, "%s required", strings.Join(missing, ", "))
	}
	return nil
}

// Patch partial update; nil or blank fields keep their current value
type Patch struct {
	Title       *string
	Description *string
	Type        *string
}

// ListOptions filters for List
type ListOptions struct {
	OwnerID *string
}

// Service dataset operations
type Service struct {
	db        *gorm.DB
	users     UserLookup
	mirror    Mirror
	publisher events.Publisher
}

// Option configures a Service
type Option func(*Service)

// WithMirror copies payloads to object storage
func WithMirror(m Mirror) Option {
	return func(s *Service) {
		s.mirror = m
	}
}

// WithPublisher announces lifecycle events
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// NewService builds the service
func NewService(db *gorm.DB, users UserLookup, opts ...Option) *Service {
	s := &Service{
		db:        db,
		users:     users,
		publisher: events.Noop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates req and inserts a dataset.
// Nothing is written when validation or loading the file fails.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*database.Dataset, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ds := &database.Dataset{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Type:        strings.TrimSpace(req.Type),
		OwnerID:     req.OwnerID,
	}

	if req.File != nil {
		blob, err := req.File.Load()
		if err != nil {
			return nil, err
		}
		attach(ds, blob)
	}

	if err := s.db.WithContext(ctx).Create(ds).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseInsert, err)
	}

	if ds.FileContent != nil {
		s.mirrorStore(ctx, ds.ID, *ds.FileContentType, ds.FileContent)
	}
	s.publish(ctx, events.NewEvent(events.TypeCreated, ds.ID, deref(req.OwnerID), ds.Size))

	return s.Get(ctx, ds.ID)
}

// Get returns dataset metadata with its owner summary; the payload is not loaded
func (s *Service) Get(ctx context.Context, id string) (*database.Dataset, error) {
	var ds database.Dataset
	err := s.metadata(ctx).Where("id = ?", id).First(&ds).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrDatasetNotFound)
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	return &ds, nil
}

// List returns dataset metadata, newest first
func (s *Service) List(ctx context.Context, opts ListOptions) ([]database.Dataset, error) {
	query := s.metadata(ctx).Order("created_at DESC")
	if opts.OwnerID != nil {
		query = query.Where("user_id = ?", *opts.OwnerID)
	}

	datasets := []database.Dataset{}
	if err := query.Find(&datasets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	return datasets, nil
}

// ListForUser lists one owner's datasets; only that owner or an admin may ask
func (s *Service) ListForUser(ctx context.Context, actor *database.User, ownerID string) ([]database.Dataset, error) {
	if actor == nil || (!actor.IsAdmin() && actor.ID != ownerID) {
		return nil, apperrors.NewWithDetails(apperrors.ErrForbidden, "you can only view your own datasets")
	}
	return s.List(ctx, ListOptions{OwnerID: &ownerID})
}

// Authorize checks actor may modify dataset id, so callers can refuse before staging an upload
func (s *Service) Authorize(ctx context.Context, actor *database.User, id string) (*database.Dataset, error) {
	ds, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canModify(actor, ds) {
		return nil, apperrors.NewWithDetails(apperrors.ErrForbidden, "not authorized to update this dataset")
	}
	return ds, nil
}

// Update applies patch and, when file is set, replaces the payload.
// Only the owner or an admin may update.
func (s *Service) Update(ctx context.Context, actor *database.User, id string, patch Patch, file Upload) (*database.Dataset, error) {
	ds, err := s.Authorize(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	setIfPresent(updates, "title", patch.Title)
	setIfPresent(updates, "description", patch.Description)
	setIfPresent(updates, "type", patch.Type)

	var blob *intake.Blob
	if file != nil {
		if blob, err = file.Load(); err != nil {
			return nil, err
		}
		updates["file_content"] = blob.Content
		updates["file_name"] = blob.FileName
		updates["file_content_type"] = blob.ContentType
		updates["file_id"] = blob.FileID
		updates["size"] = blob.Size
	}

	if len(updates) == 0 {
		return ds, nil
	}

	res := s.db.WithContext(ctx).Model(&database.Dataset{ID: id}).Updates(updates)
	if res.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseUpdate, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.New(apperrors.ErrDatasetNotFound)
	}

	if blob != nil {
		s.mirrorStore(ctx, id, blob.ContentType, blob.Content)
	}
	s.publish(ctx, events.NewEvent(events.TypeUpdated, id, actor.ID, 0))

	return s.Get(ctx, id)
}

// Delete removes a dataset and its payload permanently. Admin only.
func (s *Service) Delete(ctx context.Context, actor *database.User, id string) error {
	if !actor.IsAdmin() {
		return apperrors.NewWithDetails(apperrors.ErrForbidden, "admin role required")
	}

	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&database.Dataset{})
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrDatabaseDelete, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.New(apperrors.ErrDatasetNotFound)
	}

	if s.mirror != nil {
		besteffort.Go(ctx, "mirror_delete", logrus.Fields{"dataset_id": id}, func(ctx context.Context) error {
			return s.mirror.Remove(ctx, id)
		})
	}
	s.publish(ctx, events.NewEvent(events.TypeDeleted, id, actor.ID, 0))
	return nil
}

// metadata selects every dataset column except the payload and preloads the owner summary
func (s *Service) metadata(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&database.Dataset{}).
		Select(database.MetadataColumns).
		Preload("Owner", func(tx *gorm.DB) *gorm.DB {
			return tx.Select(database.OwnerSummaryColumns)
		})
}

func (s *Service) mirrorStore(ctx context.Context, id, contentType string, content []byte) {
	if s.mirror == nil {
		return
	}
	besteffort.Go(ctx, "mirror_put", logrus.Fields{"dataset_id": id}, func(ctx context.Context) error {
		return s.mirror.Store(ctx, id, contentType, content)
	})
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	besteffort.Go(ctx, "publish_"+event.Type, logrus.Fields{"dataset_id": event.DatasetID}, func(ctx context.Context) error {
		return s.publisher.Publish(ctx, event)
	})
}

func attach(ds *database.Dataset, blob *intake.Blob) {
	ds.FileID = &blob.FileID
	ds.FileName = &blob.FileName
	ds.FileContentType = &blob.ContentType
	ds.FileContent = blob.Content
	ds.Size = blob.Size
}

func canModify(actor *database.User, ds *database.Dataset) bool {
	if actor == nil {
		return false
	}
	if actor.IsAdmin() {
		return true
	}
	return ds.OwnerID != nil && *ds.OwnerID == actor.ID
}

func setIfPresent(updates map[string]interface{}, column string, value *string) {
	if value == nil {
		return
	}
	if v := strings.TrimSpace(*value); v != "" {
		updates[column] = v
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
