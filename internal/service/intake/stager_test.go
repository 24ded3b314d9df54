package intake

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/weiwangfds/datashare/internal/errors"
)

func newStager(t *testing.T, scanner Scanner) *Stager {
	t.Helper()
	s, err := NewStager(t.TempDir(), scanner)
	require.NoError(t, err)
	return s
}

func scratchEntries(t *testing.T, s *Stager) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	return entries
}

// countingReader records whether anything was read from it
type countingReader struct {
	r    io.Reader
	read int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += n
	return n, err
}

func TestStageAndLoad(t *testing.T) {
	s := newStager(t, nil)
	payload := []byte("a,b,c\n1,2,3\n")

	staged, err := s.Stage(context.Background(), DatasetPolicy(0), bytes.NewReader(payload), "data.csv", "text/csv", int64(len(payload)))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(staged.FileName, "data"))
	assert.Contains(t, staged.Path(), "file-")
	assert.True(t, strings.HasSuffix(staged.Path(), ".csv"))
	assert.Equal(t, int64(len(payload)), staged.Size)

	blob, err := staged.Load()
	require.NoError(t, err)
	assert.Equal(t, payload, blob.Content)
	assert.Equal(t, int64(len(payload)), blob.Size)
	assert.Equal(t, "text/csv", blob.ContentType)
	assert.Regexp(t, "^[0-9a-f]{32}$", blob.FileID)

	staged.Release()
	staged.Release()
	assert.Empty(t, scratchEntries(t, s))
}

func TestStageGeneratesUniqueNames(t *testing.T) {
	s := newStager(t, nil)
	a, err := s.Stage(context.Background(), DatasetPolicy(0), strings.NewReader("x"), "same.txt", "text/plain", 1)
	require.NoError(t, err)
	defer a.Release()
	b, err := s.Stage(context.Background(), DatasetPolicy(0), strings.NewReader("y"), "same.txt", "text/plain", 1)
	require.NoError(t, err)
	defer b.Release()

	assert.NotEqual(t, a.Path(), b.Path())
}

func TestStageSizeBoundary(t *testing.T) {
	s := newStager(t, nil)
	policy := DatasetPolicy(0)

	// declared size over the ceiling is rejected without reading
	src := &countingReader{r: strings.NewReader("x")}
	_, err := s.Stage(context.Background(), policy, src, "big.csv", "text/csv", DefaultMaxDatasetSize+1)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrFileSizeTooLarge))
	assert.Zero(t, src.read)

	// exactly the ceiling is accepted
	small := Policy{Name: "test", MaxBytes: 8, AllowedTypes: []string{"text/plain"}}
	staged, err := s.Stage(context.Background(), small, strings.NewReader("12345678"), "a.txt", "text/plain", 8)
	require.NoError(t, err)
	staged.Release()

	// an understated size is caught while copying
	_, err = s.Stage(context.Background(), small, strings.NewReader("123456789"), "a.txt", "text/plain", 0)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrFileSizeTooLarge))
	assert.Empty(t, scratchEntries(t, s))
}

func TestStageRejectsUnlistedType(t *testing.T) {
	s := newStager(t, nil)
	src := &countingReader{r: strings.NewReader("\x7fELF")}

	_, err := s.Stage(context.Background(), DatasetPolicy(0), src, "tool", "application/x-executable", 4)
	require.Error(t, err)

	appErr, ok := apperrors.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrFileTypeNotAllowed, appErr.Code)
	assert.Equal(t, "application/x-executable", appErr.Details)
	assert.Zero(t, src.read)
	assert.Empty(t, scratchEntries(t, s))

	// type wins over an oversize declaration
	_, err = s.Stage(context.Background(), DatasetPolicy(0), src, "tool", "application/x-executable", DefaultMaxDatasetSize+1)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrFileTypeNotAllowed))
	assert.Zero(t, src.read)
	assert.Empty(t, scratchEntries(t, s))
}

func TestStageSniffsMissingType(t *testing.T) {
	s := newStager(t, nil)

	staged, err := s.Stage(context.Background(), DatasetPolicy(0), strings.NewReader(`{"a": 1}`), "data", "", 0)
	require.NoError(t, err)
	defer staged.Release()
	assert.Equal(t, "application/json", staged.ContentType)

	_, err = s.Stage(context.Background(), ProfileImagePolicy(0), strings.NewReader("just text"), "avatar", "", 0)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrFileTypeNotAllowed))
}

func TestStageRejectsEmptyFile(t *testing.T) {
	s := newStager(t, nil)
	_, err := s.Stage(context.Background(), DatasetPolicy(0), strings.NewReader(""), "empty.csv", "text/csv", 0)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidParams))
	assert.Empty(t, scratchEntries(t, s))
}

type fakeScanner struct {
	err     error
	scanned []byte
}

func (f *fakeScanner) Scan(_ context.Context, r io.Reader) error {
	f.scanned, _ = io.ReadAll(r)
	return f.err
}

func TestStageScanner(t *testing.T) {
	clean := &fakeScanner{}
	s := newStager(t, clean)
	staged, err := s.Stage(context.Background(), DatasetPolicy(0), strings.NewReader("hello"), "a.txt", "text/plain", 5)
	require.NoError(t, err)
	staged.Release()
	assert.Equal(t, []byte("hello"), clean.scanned)

	infected := &fakeScanner{err: apperrors.NewWithDetails(apperrors.ErrFileInfected, "Eicar-Signature")}
	s = newStager(t, infected)
	_, err = s.Stage(context.Background(), DatasetPolicy(0), strings.NewReader("X5O!P%@AP"), "eicar.txt", "text/plain", 9)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrFileInfected))
	assert.Empty(t, scratchEntries(t, s))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestStageCleansUpOnReadFailure(t *testing.T) {
	s := newStager(t, nil)
	_, err := s.Stage(context.Background(), DatasetPolicy(0), failingReader{}, "a.csv", "text/csv", 10)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrFileUploadFailed))
	assert.Empty(t, scratchEntries(t, s))
}

func TestPolicyAllows(t *testing.T) {
	dataset := DatasetPolicy(0)
	assert.True(t, dataset.Allows("text/csv"))
	assert.True(t, dataset.Allows("Text/Plain; charset=utf-8"))
	assert.True(t, dataset.Allows("application/octet-stream"))
	assert.False(t, dataset.Allows("application/x-executable"))
	assert.False(t, dataset.Allows(""))

	images := ProfileImagePolicy(0)
	assert.Equal(t, DefaultMaxProfileImageSize, images.MaxBytes)
	assert.True(t, images.Allows("image/gif"))
	assert.False(t, images.Allows("application/pdf"))
}
