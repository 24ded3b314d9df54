package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/datashare/internal/database"
	apperrors "github.com/weiwangfds/datashare/internal/errors"
	"github.com/weiwangfds/datashare/internal/service/intake"
	"github.com/weiwangfds/datashare/internal/service/user"
	"github.com/weiwangfds/datashare/internal/testutil"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	svc     *Service
	stager  *intake.Stager
	mirror  *recordingMirror
	owner   *database.User
	other   *database.User
	admin   *database.User
	context context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	stager, err := intake.NewStager(t.TempDir(), nil)
	require.NoError(t, err)

	m := &recordingMirror{stored: map[string][]byte{}}
	return &fixture{
		db:      db,
		svc:     NewService(db, user.NewDirectory(db, 16, time.Minute), WithMirror(m)),
		stager:  stager,
		mirror:  m,
		owner:   testutil.CreateUser(t, db, "owner", database.RoleUser),
		other:   testutil.CreateUser(t, db, "other", database.RoleUser),
		admin:   testutil.CreateUser(t, db, "admin", database.RoleAdmin),
		context: context.Background(),
	}
}

func (f *fixture) stage(t *testing.T, content []byte, name, contentType string) *intake.StagedFile {
	t.Helper()
	staged, err := f.stager.Stage(f.context, intake.DatasetPolicy(0), bytes.NewReader(content), name, contentType, int64(len(content)))
	require.NoError(t, err)
	t.Cleanup(staged.Release)
	return staged
}

func (f *fixture) create(t *testing.T, owner *database.User, file Upload) *database.Dataset {
	t.Helper()
	req := CreateRequest{Title: "Rainfall", Description: "Daily rainfall", Type: "csv", File: file}
	if owner != nil {
		req.OwnerID = &owner.ID
	}
	ds, err := f.svc.Create(f.context, req)
	require.NoError(t, err)
	return ds
}

func (f *fixture) downloads(t *testing.T, id string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&database.Dataset{}).Select("downloads").Where("id = ?", id).Scan(&n).Error)
	return n
}

type recordingMirror struct {
	mu      sync.Mutex
	stored  map[string][]byte
	removed []string
}

func (m *recordingMirror) Store(_ context.Context, id, _ string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored[id] = content
	return nil
}

func (m *recordingMirror) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, id)
	return nil
}

func (m *recordingMirror) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.stored[id]
	return ok
}

func (m *recordingMirror) wasRemoved(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.removed {
		if r == id {
			return true
		}
	}
	return false
}

func TestCreateWithoutFile(t *testing.T) {
	f := newFixture(t)

	ds := f.create(t, f.owner, nil)
	assert.Equal(t, int64(0), ds.Size)
	assert.Nil(t, ds.FileID)
	assert.Nil(t, ds.FileName)
	assert.Equal(t, int64(0), ds.Downloads)
	require.NotNil(t, ds.Owner)
	assert.Equal(t, "owner", ds.Owner.Name)
}

func TestCreateWithFile(t *testing.T) {
	f := newFixture(t)
	payload := []byte("date,mm\n2024-01-01,3\n")

	ds := f.create(t, f.owner, f.stage(t, payload, "rain.csv", "text/csv"))

	assert.Equal(t, int64(len(payload)), ds.Size)
	require.NotNil(t, ds.FileID)
	assert.Len(t, *ds.FileID, 32)
	assert.Equal(t, "rain.csv", *ds.FileName)
	assert.Equal(t, "text/csv", *ds.FileContentType)
	assert.Nil(t, ds.FileContent, "metadata reads never load the payload")

	assert.Eventually(t, func() bool { return f.mirror.has(ds.ID) }, time.Second, 10*time.Millisecond)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(f.context, CreateRequest{Title: " ", Description: "d", Type: "csv"})
	require.Error(t, err)
	appErr, ok := apperrors.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrInvalidParams, appErr.Code)
	assert.Contains(t, appErr.Details, "title")

	var count int64
	require.NoError(t, f.db.Model(&database.Dataset{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGetNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(f.context, "does-not-exist")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrDatasetNotFound))
}

func TestListExcludesPayload(t *testing.T) {
	f := newFixture(t)
	payload := bytes.Repeat([]byte("z"), 64*1024)
	f.create(t, f.owner, f.stage(t, payload, "big.txt", "text/plain"))
	f.create(t, nil, nil)

	datasets, err := f.svc.List(f.context, ListOptions{})
	require.NoError(t, err)
	require.Len(t, datasets, 2)

	body, err := json.Marshal(datasets)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "zzzz")
	assert.NotContains(t, string(body), `"fileContent":`)
	var raw []map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &raw))
	for _, item := range raw {
		assert.NotContains(t, item, "fileContent")
	}
	for _, ds := range datasets {
		assert.Nil(t, ds.FileContent)
	}

	// the owner summary carries only public fields
	assert.NotContains(t, string(body), "username")
	assert.NotContains(t, string(body), `"role"`)
}

func TestListForUser(t *testing.T) {
	f := newFixture(t)
	mine := f.create(t, f.owner, nil)
	f.create(t, f.other, nil)

	datasets, err := f.svc.ListForUser(f.context, f.owner, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, datasets, 1)
	assert.Equal(t, mine.ID, datasets[0].ID)

	datasets, err = f.svc.ListForUser(f.context, f.admin, f.owner.ID)
	require.NoError(t, err)
	assert.Len(t, datasets, 1)

	_, err = f.svc.ListForUser(f.context, f.other, f.owner.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))
}

func TestUpdateByOwnerKeepsOmittedFields(t *testing.T) {
	f := newFixture(t)
	ds := f.create(t, f.owner, nil)

	title := "Rainfall 2024"
	blank := ""
	updated, err := f.svc.Update(f.context, f.owner, ds.ID, Patch{Title: &title, Description: &blank}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Rainfall 2024", updated.Title)
	assert.Equal(t, "Daily rainfall", updated.Description)
	assert.Equal(t, "csv", updated.Type)
	assert.False(t, updated.UpdatedAt.Before(ds.UpdatedAt))
}

func TestUpdateReplacesFile(t *testing.T) {
	f := newFixture(t)
	ds := f.create(t, f.owner, f.stage(t, []byte("old"), "old.txt", "text/plain"))

	next := []byte(`{"rain": [1, 2, 3]}`)
	updated, err := f.svc.Update(f.context, f.admin, ds.ID, Patch{}, f.stage(t, next, "new.json", "application/json"))
	require.NoError(t, err)

	assert.Equal(t, int64(len(next)), updated.Size)
	assert.Equal(t, "new.json", *updated.FileName)
	assert.Equal(t, "application/json", *updated.FileContentType)
	assert.NotEqual(t, *ds.FileID, *updated.FileID)

	dl, err := f.svc.Download(f.context, DownloadRequest{DatasetID: ds.ID})
	require.NoError(t, err)
	assert.Equal(t, next, dl.Content)
}

func TestUpdateForbiddenLeavesRecordUnchanged(t *testing.T) {
	f := newFixture(t)
	ds := f.create(t, f.owner, nil)

	title := "hijacked"
	_, err := f.svc.Update(f.context, f.other, ds.ID, Patch{Title: &title}, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	current, err := f.svc.Get(f.context, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rainfall", current.Title)
	assert.Equal(t, ds.UpdatedAt.Unix(), current.UpdatedAt.Unix())
}

func TestUpdateOwnerlessRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ds := f.create(t, nil, nil)
	title := "x"

	_, err := f.svc.Update(f.context, f.owner, ds.ID, Patch{Title: &title}, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	_, err = f.svc.Update(f.context, f.admin, ds.ID, Patch{Title: &title}, nil)
	assert.NoError(t, err)
}

func TestUpdateNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Update(f.context, f.admin, "missing", Patch{}, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrDatasetNotFound))
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ds := f.create(t, f.owner, f.stage(t, []byte("bytes"), "a.txt", "text/plain"))
	_, err := f.svc.Download(f.context, DownloadRequest{DatasetID: ds.ID})
	require.NoError(t, err)

	err = f.svc.Delete(f.context, f.owner, ds.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	require.NoError(t, f.svc.Delete(f.context, f.admin, ds.ID))
	_, err = f.svc.Get(f.context, ds.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrDatasetNotFound))

	err = f.svc.Delete(f.context, f.admin, ds.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrDatasetNotFound))

	// the audit trail outlives the dataset
	var events int64
	require.NoError(t, f.db.Model(&database.DownloadEvent{}).Where("dataset_id = ?", ds.ID).Count(&events).Error)
	assert.Equal(t, int64(1), events)

	assert.Eventually(t, func() bool { return f.mirror.wasRemoved(ds.ID) }, time.Second, 10*time.Millisecond)
}

func TestCreateRequestValidate(t *testing.T) {
	err := CreateRequest{}.Validate()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "title, description, type"))
	assert.NoError(t, CreateRequest{Title: "a", Description: "b", Type: "c"}.Validate())
}
