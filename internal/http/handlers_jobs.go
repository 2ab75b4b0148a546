package httpx

import (
	"errors"
	"net/http"

	"github.com/jayClean/product-importer/internal/domain/model"
	"github.com/jayClean/product-importer/internal/service"
)

// JobHandlers provides HTTP handlers for job-related operations.
type JobHandlers struct {
	Svc      *service.JobService
	Progress *service.ProgressService
}

// List handles GET /api/jobs with optional status and type filters.
func (h *JobHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, 50, 1000)
	opts := &model.JobListOptions{Limit: limit, Offset: offset}

	if v := r.URL.Query().Get("status"); v != "" {
		status := model.JobStatus(v)
		if !status.Valid() {
			WriteError(
				w,
				ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_query", Err: errors.New("unknown job status")},
			)
			return
		}
		opts.Status = &status
	}
	if v := r.URL.Query().Get("type"); v != "" {
		jobType := model.JobType(v)
		if !jobType.Valid() {
			WriteError(
				w,
				ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_query", Err: errors.New("unknown job type")},
			)
			return
		}
		opts.Type = &jobType
	}

	jobs, err := h.Svc.List(r.Context(), opts)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	statuses := make([]*model.JobStatusResponse, len(jobs))
	for i, job := range jobs {
		statuses[i] = service.BuildJobStatus(job, h.Progress.Fetch(r.Context(), job.ID))
	}
	WriteJSON(w, http.StatusOK, statuses)
}

// GetStatus handles GET /api/jobs/{id}: the durable row merged with the live
// progress snapshot when one exists.
func (h *JobHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return
	}

	job, err := h.Svc.GetByID(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, service.BuildJobStatus(job, h.Progress.Fetch(r.Context(), jobID)))
}

// Stats handles GET /api/jobs/stats/{type}.
func (h *JobHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	jobType := model.JobType(r.PathValue("type"))
	if jobType == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job type is required")},
		)
		return
	}

	stats, err := h.Svc.Stats(r.Context(), jobType)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// Delete handles DELETE /api/jobs/{id}. Only pending jobs without an active
// lease can be removed.
func (h *JobHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return
	}

	if err := h.Svc.Delete(r.Context(), jobID); err != nil {
		WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
