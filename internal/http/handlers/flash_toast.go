package handlers

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/infralens/infralens/internal/http/viewmodels"
	"github.com/labstack/echo/v5"
)

const (
	flashToastCookieName = "infralens_toast"
	flashToastMaxAge     = 30
)

var toastCategories = map[string]bool{
	"success": true,
	"error":   true,
	"warning": true,
	"info":    true,
}

// setFlashToast queues a toast for the next rendered page, so it survives the
// redirect after a POST.
func setFlashToast(c *echo.Context, toast viewmodels.ToastViewData) {
	if value, ok := encodeToast(toast); ok {
		c.SetCookie(toastCookie(value, flashToastMaxAge))
	}
}

// popFlashToast returns the queued toast, if any, and clears it.
func popFlashToast(c *echo.Context) *viewmodels.ToastViewData {
	cookie, err := c.Cookie(flashToastCookieName)
	if err != nil || cookie == nil {
		return nil
	}
	expired := toastCookie("", -1)
	expired.Expires = time.Unix(0, 0)
	c.SetCookie(expired)

	toast, ok := decodeToast(cookie.Value)
	if !ok {
		return nil
	}
	return &toast
}

func toastCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     flashToastCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// encodeToast packs a toast as base64 form values; empty toasts are dropped.
func encodeToast(toast viewmodels.ToastViewData) (string, bool) {
	toast = cleanToast(toast)
	if toast.Title == "" && toast.Description == "" {
		return "", false
	}
	v := url.Values{}
	v.Set("c", toast.Category)
	if toast.Title != "" {
		v.Set("t", toast.Title)
	}
	if toast.Description != "" {
		v.Set("d", toast.Description)
	}
	return base64.RawURLEncoding.EncodeToString([]byte(v.Encode())), true
}

func decodeToast(value string) (viewmodels.ToastViewData, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return viewmodels.ToastViewData{}, false
	}
	v, err := url.ParseQuery(string(raw))
	if err != nil {
		return viewmodels.ToastViewData{}, false
	}
	toast := cleanToast(viewmodels.ToastViewData{
		Category:    v.Get("c"),
		Title:       v.Get("t"),
		Description: v.Get("d"),
	})
	return toast, toast.Title != "" || toast.Description != ""
}

// cleanToast trims the text and falls back to "info" for unknown categories.
func cleanToast(toast viewmodels.ToastViewData) viewmodels.ToastViewData {
	toast.Category = strings.ToLower(strings.TrimSpace(toast.Category))
	if !toastCategories[toast.Category] {
		toast.Category = "info"
	}
	toast.Title = strings.TrimSpace(toast.Title)
	toast.Description = strings.TrimSpace(toast.Description)
	return toast
}
