package handlers

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/infralens/infralens/internal/http/viewmodels"
)

func TestFlashToastRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   viewmodels.ToastViewData
		want *viewmodels.ToastViewData
	}{
		{
			name: "kept as is",
			in:   viewmodels.ToastViewData{Category: "success", Title: "Refresh started", Description: "Data will update shortly."},
			want: &viewmodels.ToastViewData{Category: "success", Title: "Refresh started", Description: "Data will update shortly."},
		},
		{
			name: "unknown category becomes info",
			in:   viewmodels.ToastViewData{Category: "Loud", Title: " Signed out "},
			want: &viewmodels.ToastViewData{Category: "info", Title: "Signed out"},
		},
		{
			name: "special characters survive",
			in:   viewmodels.ToastViewData{Category: "ERROR", Description: "a=b&c <d>"},
			want: &viewmodels.ToastViewData{Category: "error", Description: "a=b&c <d>"},
		},
		{
			name: "empty toast is not stored",
			in:   viewmodels.ToastViewData{Category: "error", Title: "  "},
			want: nil,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c, rec := newTestContext(http.MethodPost, "/refresh")
			setFlashToast(c, tc.in)
			if diff := cmp.Diff(tc.want, flashToast(t, rec)); diff != "" {
				t.Fatalf("toast mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPopFlashToastClearsCookie(t *testing.T) {
	t.Parallel()

	c, rec := newTestContext(http.MethodGet, "/")
	c.Request().AddCookie(toastCookie("not base64!", flashToastMaxAge))
	if got := popFlashToast(c); got != nil {
		t.Fatalf("popFlashToast() = %+v, want nil for a corrupt cookie", got)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != flashToastCookieName || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected an expiring toast cookie, got %+v", cookies)
	}
}
