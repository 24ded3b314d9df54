package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/weiwangfds/datashare/internal/errors"
	"github.com/weiwangfds/datashare/internal/middleware"
	"github.com/weiwangfds/datashare/internal/response"
	"github.com/weiwangfds/datashare/internal/service/dataset"
	"github.com/weiwangfds/datashare/internal/service/intake"
	"github.com/weiwangfds/datashare/internal/service/stats"
)

// multipartOverhead room for form fields and part headers on top of the file ceiling
const multipartOverhead = 1 << 20

// DatasetHandler dataset HTTP endpoints
type DatasetHandler struct {
	datasets *dataset.Service
	stats    *stats.Service
	stager   *intake.Stager
	policy   intake.Policy
}

// NewDatasetHandler creates the handler
func NewDatasetHandler(datasets *dataset.Service, statsService *stats.Service, stager *intake.Stager, policy intake.Policy) *DatasetHandler {
	return &DatasetHandler{
		datasets: datasets,
		stats:    statsService,
		stager:   stager,
		policy:   policy,
	}
}

// datasetForm descriptive fields of a create or update request
type datasetForm struct {
	Title       *string `form:"title" json:"title"`
	Description *string `form:"description" json:"description"`
	Type        *string `form:"type" json:"type"`
}

// CreateDataset upload a dataset
// @Summary Create dataset
// @Tags datasets
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param description formData string true "Description"
// @Param type formData string true "Category"
// @Param file formData file false "Payload"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} response.ErrorBody
// @Failure 413 {object} response.ErrorBody
// @Router /api/datasets [post]
func (h *DatasetHandler) CreateDataset(c *gin.Context) {
	h.limitBody(c)

	form, err := h.bindForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	user := middleware.CurrentUser(c)
	req := dataset.CreateRequest{
		Title:       deref(form.Title),
		Description: deref(form.Description),
		Type:        deref(form.Type),
		OwnerID:     &user.ID,
	}
	// reject bad fields before any file byte is staged
	if err := req.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	staged, err := h.stageFile(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if staged != nil {
		defer staged.Release()
		req.File = staged
	}

	ds, err := h.datasets.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"dataset": ds})
}

// ListDatasets all datasets, newest first
// @Summary List datasets
// @Tags datasets
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/datasets [get]
func (h *DatasetHandler) ListDatasets(c *gin.Context) {
	datasets, err := h.datasets.List(c.Request.Context(), dataset.ListOptions{})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"datasets": datasets})
}

// ListUserDatasets datasets owned by one user, visible to that user and admins
// @Summary List a user's datasets
// @Tags datasets
// @Produce json
// @Param userId path string true "Owner id"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} response.ErrorBody
// @Router /api/datasets/user/{userId} [get]
func (h *DatasetHandler) ListUserDatasets(c *gin.Context) {
	datasets, err := h.datasets.ListForUser(c.Request.Context(), middleware.CurrentUser(c), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"datasets": datasets})
}

// GetDataset dataset metadata
// @Summary Get dataset
// @Tags datasets
// @Produce json
// @Param id path string true "Dataset id"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} response.ErrorBody
// @Router /api/datasets/{id} [get]
func (h *DatasetHandler) GetDataset(c *gin.Context) {
	ds, err := h.datasets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"dataset": ds})
}

// UpdateDataset partial update, optionally replacing the payload
// @Summary Update dataset
// @Tags datasets
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Dataset id"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /api/datasets/{id} [put]
func (h *DatasetHandler) UpdateDataset(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	user := middleware.CurrentUser(c)

	// permission is settled before the body is read
	if _, err := h.datasets.Authorize(ctx, user, id); err != nil {
		response.Error(c, err)
		return
	}

	h.limitBody(c)
	form, err := h.bindForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	staged, err := h.stageFile(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var file dataset.Upload
	if staged != nil {
		defer staged.Release()
		file = staged
	}

	patch := dataset.Patch{Title: form.Title, Description: form.Description, Type: form.Type}
	ds, err := h.datasets.Update(ctx, user, id, patch, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"dataset": ds})
}

// DeleteDataset admin only
// @Summary Delete dataset
// @Tags datasets
// @Produce json
// @Param id path string true "Dataset id"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /api/datasets/{id} [delete]
func (h *DatasetHandler) DeleteDataset(c *gin.Context) {
	if err := h.datasets.Delete(c.Request.Context(), middleware.CurrentUser(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Dataset deleted successfully")
}

// DownloadDataset serves the stored payload byte for byte
// @Summary Download dataset file
// @Tags datasets
// @Produce application/octet-stream
// @Param id path string true "Dataset id"
// @Param userId query string false "Downloading user"
// @Success 200 {file} binary
// @Failure 404 {object} response.ErrorBody
// @Router /api/datasets/{id}/download [get]
func (h *DatasetHandler) DownloadDataset(c *gin.Context) {
	dl, err := h.datasets.Download(c.Request.Context(), dataset.DownloadRequest{
		DatasetID: c.Param("id"),
		UserID:    c.Query("userId"),
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", contentDisposition(dl.FileName))
	c.Header("Content-Length", strconv.FormatInt(dl.Size(), 10))
	c.Data(http.StatusOK, dl.ContentType, dl.Content)
}

// GetStats download and storage totals
// @Summary Dataset totals
// @Tags stats
// @Produce json
// @Success 200 {object} stats.Totals
// @Router /api/datasets/stats [get]
func (h *DatasetHandler) GetStats(c *gin.Context) {
	totals, err := h.stats.Totals(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, totals)
}

// GetDownloadHistory per-day download counts
// @Summary Download history
// @Tags stats
// @Produce json
// @Success 200 {array} stats.DayCount
// @Router /api/datasets/downloads/history [get]
func (h *DatasetHandler) GetDownloadHistory(c *gin.Context) {
	history, err := h.stats.DownloadHistory(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, history)
}

// GetDownloadReport admin download report
// @Summary Download report
// @Tags stats
// @Produce json
// @Success 200 {object} stats.Report
// @Router /api/datasets/downloads/stats [get]
func (h *DatasetHandler) GetDownloadReport(c *gin.Context) {
	report, err := h.stats.DownloadReport(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}

func (h *DatasetHandler) limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.policy.MaxBytes+multipartOverhead)
}

// bindForm reads multipart, urlencoded or JSON fields
func (h *DatasetHandler) bindForm(c *gin.Context) (*datasetForm, error) {
	var form datasetForm
	if c.Request.ContentLength == 0 && c.ContentType() == "" {
		return &form, nil
	}
	if err := c.ShouldBind(&form); err != nil {
		return nil, bodyError(err, h.policy)
	}
	return &form, nil
}

// stageFile stages the optional "file" part; nil when the request carries none
func (h *DatasetHandler) stageFile(c *gin.Context) (*intake.StagedFile, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, bodyError(err, h.policy)
	}
	return h.stage(c, fh)
}

func (h *DatasetHandler) stage(c *gin.Context, fh *multipart.FileHeader) (*intake.StagedFile, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFileUploadFailed, err)
	}
	defer src.Close()

	return h.stager.Stage(c.Request.Context(), h.policy, src, fh.Filename, fh.Header.Get("Content-Type"), fh.Size)
}

// bodyError maps request body failures, a cut-off body becomes 413
func bodyError(err error, policy intake.Policy) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperrors.NewWithDetails(apperrors.ErrFileSizeTooLarge, "limit "+strconv.FormatInt(policy.MaxBytes, 10)+" bytes")
	}
	return apperrors.NewWithDetails(apperrors.ErrInvalidParams, err.Error())
}

// contentDisposition attachment header with an ASCII fallback and an RFC 5987 name
func contentDisposition(fileName string) string {
	if fileName == "" {
		fileName = "download"
	}

	var ascii strings.Builder
	plain := true
	for _, r := range fileName {
		switch {
		case r == '"' || r == '\\':
			ascii.WriteByte('\\')
			ascii.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			ascii.WriteByte('_')
		case r > 0x7e:
			plain = false
			ascii.WriteByte('_')
		default:
			ascii.WriteRune(r)
		}
	}

	header := `attachment; filename="` + ascii.String() + `"`
	if !plain {
		header += "; filename*=UTF-8''" + url.PathEscape(fileName)
	}
	return header
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
