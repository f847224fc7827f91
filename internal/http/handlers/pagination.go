package handlers

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v5"
)

func parsePageParam(c *echo.Context) int {
	page := 1
	if rawPage := strings.TrimSpace(c.QueryParam("page")); rawPage != "" {
		if parsed, err := strconv.Atoi(rawPage); err == nil && parsed > 0 {
			page = parsed
		}
	}
	return page
}

// pageInfo derives the pager from the backend's total. The backend has
// already applied page and page size, so only the display range is computed.
type pageInfo struct {
	Page        int
	TotalPages  int
	ShowingFrom int
	ShowingTo   int
}

func paginate(total, page, perPage, showing int) pageInfo {
	if perPage < 1 {
		perPage = 1
	}
	if page < 1 {
		page = 1
	}
	totalPages := (total + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	info := pageInfo{Page: page, TotalPages: totalPages}
	if total <= 0 || showing <= 0 {
		return info
	}
	offset := (page - 1) * perPage
	info.ShowingFrom = offset + 1
	info.ShowingTo = offset + showing
	if info.ShowingTo > total {
		info.ShowingTo = total
	}
	return info
}
