package httpserver

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/transport"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func pageFromQuery(c echo.Context) (int, repo.Page) {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), defaultPageSize)
	if page < 1 {
		page = 1
	}
	if size < 1 || size > maxPageSize {
		size = defaultPageSize
	}
	return page, repo.Page{Limit: size, Offset: (page - 1) * size}
}

func pageMeta(page int, p repo.Page, total int64) transport.PageMeta {
	return transport.PageMeta{
		Page:       page,
		Size:       p.Limit,
		Total:      total,
		TotalPages: (total + int64(p.Limit) - 1) / int64(p.Limit),
		HasPrev:    page > 1,
		HasNext:    int64(p.Offset+p.Limit) < total,
	}
}
