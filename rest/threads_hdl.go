package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/Gthulhu/schedcore/domain"
)

// ListThreadsResponse is the response structure for GET /api/v1/threads.
type ListThreadsResponse struct {
	Threads   []domain.ThreadInfo `json:"threads"`
	Count     int                 `json:"count"`
	Timestamp string              `json:"timestamp"`
}

// GetThreadResponse is the response structure for GET /api/v1/threads/:threadID.
type GetThreadResponse struct {
	Thread    *domain.ThreadInfo `json:"thread"`
	Timestamp string             `json:"timestamp"`
}

// GetStatsResponse is the response structure for GET /api/v1/stats.
type GetStatsResponse struct {
	Stats     *domain.SchedStats `json:"stats"`
	Timestamp string             `json:"timestamp"`
}

// GetLoadAvgResponse is the response structure for GET /api/v1/loadavg.
type GetLoadAvgResponse struct {
	LoadAvgTimes100 int    `json:"load_avg_x100"`
	Timestamp       string `json:"timestamp"`
}

// ListThreads returns every live thread known to the scheduler.
func (h *Handler) ListThreads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	threads, err := h.Svc.ListThreads(ctx)
	if err != nil {
		h.ErrorResponse(ctx, w, http.StatusInternalServerError, "Failed to list threads")
		return
	}

	response := ListThreadsResponse{
		Threads:   threads,
		Count:     len(threads),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	h.JSONResponse(ctx, w, http.StatusOK, response)
}

// GetThread returns a single thread by its ID.
func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw := h.GetPathParam(r, "threadID")
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		h.ErrorResponse(ctx, w, http.StatusBadRequest, "Invalid thread ID: "+raw)
		return
	}

	thread, err := h.Svc.GetThread(ctx, domain.ThreadID(id))
	if err != nil {
		if errors.Is(err, domain.ErrThreadNotFound) {
			h.ErrorResponse(ctx, w, http.StatusNotFound, "Thread not found")
			return
		}
		h.ErrorResponse(ctx, w, http.StatusInternalServerError, "Failed to get thread")
		return
	}

	response := GetThreadResponse{
		Thread:    thread,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	h.JSONResponse(ctx, w, http.StatusOK, response)
}

// GetStats returns the scheduler counters since boot.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.Svc.GetStats(ctx)
	if err != nil {
		h.ErrorResponse(ctx, w, http.StatusInternalServerError, "Failed to get stats")
		return
	}

	response := GetStatsResponse{
		Stats:     stats,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	h.JSONResponse(ctx, w, http.StatusOK, response)
}

// GetLoadAvg returns the system load average, scaled by 100.
func (h *Handler) GetLoadAvg(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	load, err := h.Svc.GetLoadAvg(ctx)
	if err != nil {
		h.ErrorResponse(ctx, w, http.StatusInternalServerError, "Failed to get load average")
		return
	}

	response := GetLoadAvgResponse{
		LoadAvgTimes100: load,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
	h.JSONResponse(ctx, w, http.StatusOK, response)
}
