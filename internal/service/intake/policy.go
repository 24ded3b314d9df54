package intake

import (
	"mime"
	"strings"
)

// Default ceilings
const (
	DefaultMaxDatasetSize      int64 = 100 * 1024 * 1024
	DefaultMaxProfileImageSize int64 = 5 * 1024 * 1024
)

// datasetTypes content types accepted for dataset files
var datasetTypes = []string{
	"text/csv",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/json",
	"text/plain",
	"application/pdf",
	"image/jpeg",
	"image/png",
	"audio/mpeg",
	"audio/wav",
	"video/mp4",
	"application/zip",
	"application/x-zip-compressed",
	"application/octet-stream",
}

// Policy limits what one intake pipeline accepts
type Policy struct {
	// Name label used in logs and metrics
	Name string
	// MaxBytes inclusive size ceiling
	MaxBytes int64
	// AllowedTypes exact media types
	AllowedTypes []string
	// AllowedPrefixes media type prefixes such as "image/"
	AllowedPrefixes []string
}

// DatasetPolicy dataset file pipeline, maxBytes <= 0 selects the default ceiling
func DatasetPolicy(maxBytes int64) Policy {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDatasetSize
	}
	return Policy{
		Name:         "dataset",
		MaxBytes:     maxBytes,
		AllowedTypes: datasetTypes,
	}
}

// ProfileImagePolicy profile image pipeline, maxBytes <= 0 selects the default ceiling
func ProfileImagePolicy(maxBytes int64) Policy {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxProfileImageSize
	}
	return Policy{
		Name:            "profile_image",
		MaxBytes:        maxBytes,
		AllowedPrefixes: []string{"image/"},
	}
}

// Allows reports whether contentType passes the allow-list.
// Parameters such as charset are ignored.
func (p Policy) Allows(contentType string) bool {
	ct := NormalizeContentType(contentType)
	if ct == "" {
		return false
	}
	for _, allowed := range p.AllowedTypes {
		if ct == allowed {
			return true
		}
	}
	for _, prefix := range p.AllowedPrefixes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}

// NormalizeContentType lower-cases a media type and strips its parameters
func NormalizeContentType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType
	}
	return strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
}
