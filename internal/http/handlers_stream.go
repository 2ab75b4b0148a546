package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/jayClean/product-importer/internal/domain/model"
	"github.com/jayClean/product-importer/internal/service"
)

const (
	defaultStreamPollInterval = 5 * time.Second
	defaultStreamStallPolls   = 60
	// Progress deltas at or below this are treated as no movement.
	streamStallEpsilon = 0.001
	// Consecutive failed polls tolerated before the stream gives up.
	streamMaxPollErrors = 3
)

// StreamHandlers serves live job progress over Server-Sent Events.
type StreamHandlers struct {
	Jobs     *service.JobService
	Progress *service.ProgressService
	Logger   *slog.Logger

	// PollInterval is how often the job state is re-read; defaults to 5s.
	PollInterval time.Duration
	// StallPolls is how many unchanged polls end the stream; defaults to 60.
	StallPolls int
}

// Stream handles GET /api/jobs/{id}/stream. Each poll merges the durable row
// with the cache snapshot and writes one SSE data frame. The stream ends with
// "event: close" once the job reaches a terminal status, "event: timeout"
// when progress stops moving, or "event: error" after repeated failed polls.
func (h *StreamHandlers) Stream(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "streaming_unsupported",
			Err:     errors.New("response writer does not support streaming"),
		})
		return
	}

	// Reads run against a context detached from the request so a mid-poll
	// client disconnect cannot poison the DB/cache calls; the loop itself
	// still ends on r.Context().
	readCtx := context.WithoutCancel(r.Context())

	// Resolve the job before committing to an SSE response, so an unknown
	// id still gets a regular 404.
	status, err := h.poll(readCtx, jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	h.streamLoop(r.Context(), readCtx, streamState{
		w:       w,
		flusher: flusher,
		jobID:   jobID,
	}, status)
}

type streamState struct {
	w       http.ResponseWriter
	flusher http.Flusher
	jobID   string
}

func (h *StreamHandlers) streamLoop(
	ctx, readCtx context.Context,
	st streamState,
	status *model.JobStatusResponse,
) {
	interval := h.PollInterval
	if interval <= 0 {
		interval = defaultStreamPollInterval
	}
	stallLimit := h.StallPolls
	if stallLimit <= 0 {
		stallLimit = defaultStreamStallPolls
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastProgress := -1.0
	stalled := 0
	pollErrors := 0

	for {
		h.writeEvent(st, "", status)

		if status.Status.Terminal() {
			h.writeEvent(st, "close", nil)
			return
		}

		if math.Abs(status.Progress-lastProgress) <= streamStallEpsilon {
			stalled++
			if stalled >= stallLimit {
				h.writeEvent(st, "timeout", nil)
				return
			}
		} else {
			stalled = 0
			lastProgress = status.Progress
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		next, err := h.poll(readCtx, st.jobID)
		if err != nil {
			h.logPollError(ctx, st.jobID, err)
			pollErrors++
			if pollErrors >= streamMaxPollErrors {
				// A distinct frame: "close" means the job finished, this
				// means the stream lost sight of it.
				h.writeEvent(st, "error", map[string]string{"error": "job status unavailable"})
				return
			}
			continue
		}
		pollErrors = 0
		status = next
	}
}

func (h *StreamHandlers) poll(ctx context.Context, jobID string) (*model.JobStatusResponse, error) {
	job, err := h.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return service.BuildJobStatus(job, h.Progress.Fetch(ctx, jobID)), nil
}

// writeEvent writes one SSE frame. A non-empty name becomes the event field;
// data, when present, is JSON-encoded into the data field.
func (h *StreamHandlers) writeEvent(st streamState, name string, data any) {
	if name != "" {
		if _, err := st.w.Write([]byte("event: " + name + "\n")); err != nil {
			return
		}
	}
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return
		}
		if _, err := st.w.Write(append([]byte("data: "), payload...)); err != nil {
			return
		}
		if _, err := st.w.Write([]byte("\n")); err != nil {
			return
		}
	}
	if _, err := st.w.Write([]byte("\n")); err != nil {
		return
	}
	st.flusher.Flush()
}

func (h *StreamHandlers) logPollError(ctx context.Context, jobID string, err error) {
	if h.Logger != nil {
		h.Logger.WarnContext(ctx, "job stream poll failed", "job_id", jobID, "error", err)
	}
}
