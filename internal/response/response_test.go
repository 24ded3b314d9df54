package response

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/weiwangfds/datashare/internal/errors"
)

func render(t *testing.T, err error, acceptLanguage string) (*httptest.ResponseRecorder, ErrorBody) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/datasets/x", nil)
	if acceptLanguage != "" {
		c.Request.Header.Set("Accept-Language", acceptLanguage)
	}
	Error(c, err)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestErrorMapsCodesToStatus(t *testing.T) {
	w, body := render(t, apperrors.NewWithDetails(apperrors.ErrFileTypeNotAllowed, "application/x-executable"), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "File type not allowed: application/x-executable", body.Error)
	assert.Equal(t, int(apperrors.ErrFileTypeNotAllowed), body.Code)

	w, _ = render(t, apperrors.New(apperrors.ErrFileSizeTooLarge), "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w, body = render(t, apperrors.New(apperrors.ErrNoFileAttached), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No file associated with this dataset", body.Error)
}

func TestErrorHidesInternalDetails(t *testing.T) {
	w, body := render(t, stderrors.New("connection reset by peer"), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", body.Error)
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestErrorIsLocalized(t *testing.T) {
	_, body := render(t, apperrors.New(apperrors.ErrDatasetNotFound), "zh-CN,zh;q=0.9")
	assert.Equal(t, "数据集未找到", body.Error)
}
