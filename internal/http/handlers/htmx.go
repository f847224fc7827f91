package handlers

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v5"
)

// hxRequest holds the htmx request headers the handlers branch on.
type hxRequest struct {
	Active bool
	// Target is the id of the element being swapped, without a leading '#'.
	Target string
}

func htmxRequest(c *echo.Context) hxRequest {
	if c == nil || c.Request() == nil {
		return hxRequest{}
	}
	h := c.Request().Header
	return hxRequest{
		Active: strings.EqualFold(strings.TrimSpace(h.Get("HX-Request")), "true"),
		Target: strings.TrimPrefix(strings.TrimSpace(h.Get("HX-Target")), "#"),
	}
}

// wantsFragment reports whether an htmx request is swapping only the element
// with the given id. The answer varies on both headers.
func wantsFragment(c *echo.Context, id string) bool {
	addVary(c, "HX-Request", "HX-Target")
	hx := htmxRequest(c)
	return hx.Active && strings.EqualFold(hx.Target, id)
}

// redirect sends the browser to url. htmx requests get HX-Redirect so the whole
// page navigates instead of the target swapping in the next page.
func redirect(c *echo.Context, url string) error {
	addVary(c, "HX-Request")
	if htmxRequest(c).Active {
		c.Response().Header().Set("HX-Redirect", url)
		return c.NoContent(http.StatusOK)
	}
	return c.Redirect(http.StatusSeeOther, url)
}

// addVary merges names into the Vary header, case-insensitively and without
// duplicates. A wildcard Vary is left alone.
func addVary(c *echo.Context, names ...string) {
	if c == nil || len(names) == 0 {
		return
	}
	header := c.Response().Header()

	var tokens []string
	for _, line := range header.Values(echo.HeaderVary) {
		for _, tok := range strings.Split(line, ",") {
			tokens = appendVaryToken(tokens, tok)
		}
	}
	if slices.Contains(tokens, "*") {
		header.Set(echo.HeaderVary, "*")
		return
	}
	for _, name := range names {
		tokens = appendVaryToken(tokens, name)
	}
	if slices.Contains(tokens, "*") {
		header.Set(echo.HeaderVary, "*")
		return
	}
	if len(tokens) > 0 {
		header.Set(echo.HeaderVary, strings.Join(tokens, ", "))
	}
}

func appendVaryToken(tokens []string, tok string) []string {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return tokens
	}
	if tok != "*" {
		tok = http.CanonicalHeaderKey(tok)
	}
	if slices.ContainsFunc(tokens, func(t string) bool { return strings.EqualFold(t, tok) }) {
		return tokens
	}
	return append(tokens, tok)
}
