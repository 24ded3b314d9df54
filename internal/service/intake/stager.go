// Package intake validates uploads and stages them in a scratch directory
// until they are committed to the dataset store.
package intake

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	apperrors "github.com/weiwangfds/datashare/internal/errors"
	"github.com/weiwangfds/datashare/internal/logger"
	"github.com/weiwangfds/datashare/internal/metrics"
)

// maxExtLength longest original extension kept on scratch names
const maxExtLength = 16

// Blob an upload read fully into memory, ready to persist
type Blob struct {
	// FileID opaque token minted per upload, 32 hex characters
	FileID      string
	FileName    string
	ContentType string
	// Size always len(Content)
	Size    int64
	Content []byte
}

// Stager writes uploads into a scratch directory and validates them
type Stager struct {
	dir     string
	scanner Scanner
}

// NewStager creates the scratch directory if needed. scanner may be nil.
func NewStager(dir string, scanner Scanner) (*Stager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return &Stager{dir: dir, scanner: scanner}, nil
}

// Dir scratch directory
func (s *Stager) Dir() string {
	return s.dir
}

// Stage validates and copies src into the scratch area.
// Declared type and size are checked before any byte is read. When contentType is
// empty the type is sniffed from the staged bytes. On error nothing is left on disk.
// On success the caller owns the StagedFile and must Release it.
func (s *Stager) Stage(ctx context.Context, policy Policy, src io.Reader, fileName, contentType string, declaredSize int64) (staged *StagedFile, err error) {
	defer func() {
		result := "accepted"
		if err != nil {
			result = "rejected"
			if appErr, ok := apperrors.GetAppError(err); ok && appErr.Status() >= http.StatusInternalServerError {
				result = "failed"
			}
		}
		metrics.UploadsTotal.WithLabelValues(policy.Name, result).Inc()
		if err == nil {
			metrics.UploadedBytesTotal.Add(float64(staged.Size))
		}
	}()

	// an unlisted type is rejected whatever its size
	contentType = NormalizeContentType(contentType)
	if contentType != "" && !policy.Allows(contentType) {
		return nil, apperrors.NewWithDetails(apperrors.ErrFileTypeNotAllowed, contentType)
	}

	if declaredSize > policy.MaxBytes {
		return nil, tooLarge(policy)
	}

	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFileUploadFailed, err)
	}

	f, err := os.CreateTemp(s.dir, "file-*"+safeExt(fileName))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFileUploadFailed, err)
	}
	staged = &StagedFile{
		path:        f.Name(),
		FileName:    baseName(fileName),
		ContentType: contentType,
	}
	defer func() {
		if err != nil {
			staged.Release()
			staged = nil
		}
	}()

	n, copyErr := io.Copy(f, io.LimitReader(src, policy.MaxBytes+1))
	closeErr := f.Close()
	if copyErr != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(copyErr, &maxBytesErr) {
			return staged, tooLarge(policy)
		}
		return staged, apperrors.Wrap(apperrors.ErrFileUploadFailed, copyErr)
	}
	if closeErr != nil {
		return staged, apperrors.Wrap(apperrors.ErrFileUploadFailed, closeErr)
	}
	if n > policy.MaxBytes {
		return staged, tooLarge(policy)
	}
	if n == 0 {
		return staged, apperrors.NewWithDetails(apperrors.ErrInvalidParams, "file is empty")
	}
	staged.Size = n

	if staged.ContentType == "" {
		detected, err := mimetype.DetectFile(staged.path)
		if err != nil {
			return staged, apperrors.Wrap(apperrors.ErrFileUploadFailed, err)
		}
		staged.ContentType = NormalizeContentType(detected.String())
		if !policy.Allows(staged.ContentType) {
			return staged, apperrors.NewWithDetails(apperrors.ErrFileTypeNotAllowed, staged.ContentType)
		}
	}

	if s.scanner != nil {
		if err := s.scan(ctx, staged); err != nil {
			return staged, err
		}
	}

	logger.WithFields(logrus.Fields{
		"policy":       policy.Name,
		"file_name":    staged.FileName,
		"content_type": staged.ContentType,
		"size":         humanize.IBytes(uint64(staged.Size)),
	}).Debug("upload staged")

	return staged, nil
}

func (s *Stager) scan(ctx context.Context, staged *StagedFile) error {
	f, err := os.Open(staged.path)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrFileUploadFailed, err)
	}
	defer f.Close()
	return s.scanner.Scan(ctx, f)
}

func tooLarge(policy Policy) *apperrors.AppError {
	return apperrors.Newf(apperrors.ErrFileSizeTooLarge, "maximum is %s", humanize.IBytes(uint64(policy.MaxBytes)))
}

// baseName strips any client supplied directories
func baseName(fileName string) string {
	name := filepath.Base(strings.ReplaceAll(fileName, `\`, "/"))
	if name == "." || name == "/" {
		return "file"
	}
	return name
}

// safeExt keeps a short, separator-free extension of the original name
func safeExt(fileName string) string {
	ext := filepath.Ext(filepath.Base(fileName))
	if len(ext) > maxExtLength || strings.ContainsAny(ext, `/\`) {
		return ""
	}
	return ext
}

// StagedFile an upload held in the scratch area
type StagedFile struct {
	path        string
	FileName    string
	ContentType string
	Size        int64

	releaseOnce sync.Once
}

// Path location of the scratch file
func (f *StagedFile) Path() string {
	return f.path
}

// Load reads the staged bytes and mints a new file id
func (f *StagedFile) Load() (*Blob, error) {
	content, err := os.ReadFile(f.path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFileUploadFailed, err)
	}
	return &Blob{
		FileID:      NewFileID(),
		FileName:    f.FileName,
		ContentType: f.ContentType,
		Size:        int64(len(content)),
		Content:     content,
	}, nil
}

// Release removes the scratch file. Safe to call more than once; failures are only logged.
func (f *StagedFile) Release() {
	if f == nil {
		return
	}
	f.releaseOnce.Do(func() {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			logger.WithField("path", f.path).WithError(err).Warn("failed to remove scratch file")
		}
	})
}

// NewFileID returns a random 128-bit token in hex
func NewFileID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
