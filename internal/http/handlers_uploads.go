package httpx

import (
	"errors"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/jayClean/product-importer/internal/service"
)

// UploadHandlers accepts CSV uploads and turns them into import jobs.
type UploadHandlers struct {
	Imports  *service.ImportService
	Progress *service.ProgressService
	// MaxBytes bounds the multipart form memory and upload size.
	MaxBytes int64
}

const defaultMaxUploadBytes = 100 * 1024 * 1024

// Create handles POST /api/uploads: stage the file, enqueue an import job,
// and answer 202 with the initial job status. The import itself runs in the
// background workers.
func (h *UploadHandlers) Create(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_upload",
			Err:     errors.New(`multipart form field "file" is required`),
		})
		return
	}
	defer file.Close()

	if err := validateUploadFilename(header); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_upload", Err: err})
		return
	}

	job, err := h.Imports.CreateFromUpload(r.Context(), file, header.Filename)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, ErrorParams{
				Code:    http.StatusRequestEntityTooLarge,
				ErrCode: "upload_too_large",
				Err:     err,
			})
			return
		}
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, service.BuildJobStatus(job, h.Progress.Fetch(r.Context(), job.ID)))
}

func validateUploadFilename(header *multipart.FileHeader) error {
	name := strings.TrimSpace(header.Filename)
	if name == "" {
		return errors.New("upload filename is required")
	}
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return errors.New("upload must be a .csv file")
	}
	return nil
}
