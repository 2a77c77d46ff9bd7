package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/laundrydesk/opsync/internal/core/service"
)

// Puller refreshes both registries and reconciles them.
type Puller interface {
	Pull(ctx context.Context) (service.PassReport, error)
}

// PassRunner runs one reconciliation pass over the cached registries.
type PassRunner interface {
	Run(ctx context.Context) service.PassReport
}

type SyncHandler struct {
	puller Puller
	runner PassRunner
}

func NewSyncHandler(puller Puller, runner PassRunner) *SyncHandler {
	return &SyncHandler{puller: puller, runner: runner}
}

// Sync handles POST /sync.
//
// @Summary      Pull tasks and orders, then reconcile
// @Tags         sync
// @Produce      json
// @Success      200  {object}  service.PassReport
// @Failure      502  {object}  errorResponse
// @Router       /sync [post]
func (h *SyncHandler) Sync(c echo.Context) error {
	report, err := h.puller.Pull(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

// Reconcile handles POST /reconcile.
//
// @Summary      Run one reconciliation pass over the cache
// @Tags         sync
// @Produce      json
// @Success      200  {object}  service.PassReport
// @Router       /reconcile [post]
func (h *SyncHandler) Reconcile(c echo.Context) error {
	return c.JSON(http.StatusOK, h.runner.Run(c.Request().Context()))
}
