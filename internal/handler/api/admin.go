package api

import (
	"context"
	"net/http"
	"time"

	"github.com/dukerupert/ledgerly/internal/clock"
	"github.com/dukerupert/ledgerly/internal/handler"
)

// OverdueSweeper runs the overdue sweep. Implemented by *service.SweepService.
type OverdueSweeper interface {
	RunOverdueSweep(ctx context.Context, now time.Time) (int, error)
}

// AdminHandler serves manual triggers of scheduled jobs. Routes must be
// wrapped in RequireClaim(auth.CanRunAdminJobs).
type AdminHandler struct {
	sweeper OverdueSweeper
	clock   clock.Clock
}

func NewAdminHandler(sweeper OverdueSweeper, clk clock.Clock) *AdminHandler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &AdminHandler{sweeper: sweeper, clock: clk}
}

// RunOverdueSweep handles POST /api/admin/overdue-sweep
func (h *AdminHandler) RunOverdueSweep(w http.ResponseWriter, r *http.Request) {
	n, err := h.sweeper.RunOverdueSweep(r.Context(), h.clock.Now())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, map[string]int{"transitioned": n})
}
