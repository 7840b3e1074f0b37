package handler

import (
	"context"
	"net/http"

	"github.com/boostmarket/paywebhook/internal/logging"
	"github.com/boostmarket/paywebhook/internal/service/webhook"
)

type sweeper interface {
	ProcessPending(ctx context.Context) (webhook.SweepResult, error)
	Cleanup(ctx context.Context) (int64, error)
}

// CronHandler lets an external scheduler trigger sweeps over HTTP.
type CronHandler struct {
	scheduler sweeper
}

func NewCronHandler(scheduler sweeper) *CronHandler {
	return &CronHandler{scheduler: scheduler}
}

func (h *CronHandler) ProcessPending(w http.ResponseWriter, r *http.Request) {
	res, err := h.scheduler.ProcessPending(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("cron sweep failed", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}
	RespondSuccess(w, http.StatusOK, res)
}

func (h *CronHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.scheduler.Cleanup(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("cron cleanup failed", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
