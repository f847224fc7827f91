package handlers

import (
	"errors"

	"github.com/infralens/infralens/internal/auth"
	"github.com/infralens/infralens/internal/backend"
	"github.com/infralens/infralens/internal/http/authn"
	"github.com/infralens/infralens/internal/http/viewmodels"
	"github.com/infralens/infralens/internal/refresh"
	"github.com/labstack/echo/v5"
)

// HandleRefreshPost starts a backend refresh and returns to the page it was
// requested from. The cache is only invalidated once the backend accepts.
func (h *Handlers) HandleRefreshPost(c *echo.Context) error {
	next := auth.SanitizeNext(c.FormValue("next"))
	if next == "" {
		next = "/"
	}

	if h.Refresher == nil {
		return errors.New("refresher not configured")
	}

	res, err := h.Refresher.Refresh(c.Request().Context())
	switch {
	case err == nil:
		toast := viewmodels.ToastViewData{
			Category:    "success",
			Title:       "Refresh started",
			Description: "Data collection is running. Views update as results arrive.",
		}
		if res.RefetchErr != nil {
			c.Logger().Warn("refetch after refresh incomplete", "error", res.RefetchErr)
			toast.Description = "Data collection is running. Some views could not be reloaded yet."
		}
		setFlashToast(c, toast)
	case errors.Is(err, refresh.ErrRefreshInProgress):
		setFlashToast(c, viewmodels.ToastViewData{
			Category:    "warning",
			Title:       "Refresh already running",
			Description: "Wait for the current run to finish before starting another.",
		})
	case sessionExpired(c, err):
		return authn.ExpireSession(c, h.Sessions)
	case errors.Is(err, backend.ErrUnauthorized):
		setFlashToast(c, viewmodels.ToastViewData{
			Category:    "error",
			Title:       "Refresh not allowed",
			Description: "The backend rejected the refresh request.",
		})
	default:
		logBackendError(c, "refresh", err)
		setFlashToast(c, viewmodels.ToastViewData{
			Category:    "error",
			Title:       "Refresh failed",
			Description: "The backend could not start a refresh. Try again shortly.",
		})
	}
	return redirect(c, next)
}
