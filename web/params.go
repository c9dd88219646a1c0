package web

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Skryldev/itemstore/service"
)

// ListQuery is the parsed state of GET /items. It is handed to the list view
// so links can rebuild the current query with one parameter changed.
type ListQuery struct {
	Page     int
	Size     int
	Sort     string
	Dir      string
	Keyword  string
	DateFrom string
}

// parseListQuery never fails: unparseable numbers and unknown sort fields
// fall back to defaults. A filtered query always lists newest first, so its
// Sort and Dir are set to that order whatever the request asked for.
func parseListQuery(c *gin.Context) ListQuery {
	q := ListQuery{
		Page:     atoiOr(c.Query("page"), 0),
		Size:     atoiOr(c.Query("size"), service.DefaultPageSize),
		Sort:     strings.TrimSpace(c.DefaultQuery("sort", service.DefaultSortField)),
		Dir:      strings.ToLower(strings.TrimSpace(c.DefaultQuery("dir", service.DefaultSortDir))),
		Keyword:  strings.TrimSpace(c.Query("keyword")),
		DateFrom: strings.TrimSpace(c.Query("dateFrom")),
	}
	if !service.IsSortField(q.Sort) {
		q.Sort = service.DefaultSortField
	}
	if q.Dir != "asc" && q.Dir != "desc" {
		q.Dir = "asc"
	}
	if q.Filtered() {
		q.Sort, q.Dir = service.DefaultSortField, service.DefaultSortDir
	}
	q.Page, q.Size = service.NormalizePage(q.Page, q.Size)
	return q
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

// Filtered reports whether the listing is a keyword search or a date filter.
// Those are ordered newest first and cannot be re-sorted.
func (q ListQuery) Filtered() bool {
	return q.Keyword != "" || q.DateFrom != ""
}

// SortArrow marks the column the listing is ordered by.
func (q ListQuery) SortArrow(field string) string {
	switch {
	case q.Sort != field:
		return ""
	case q.Dir == "asc":
		return " ↑"
	default:
		return " ↓"
	}
}

// ReverseDir is the direction a click on the active sort column switches to.
func (q ListQuery) ReverseDir() string {
	if q.Dir == "asc" {
		return "desc"
	}
	return "asc"
}

// PageURL links to page n with everything else unchanged.
func (q ListQuery) PageURL(n int) string {
	q.Page = n
	return q.url()
}

// SortURL links to the first page sorted by field. Clicking the active
// column flips its direction.
func (q ListQuery) SortURL(field string) string {
	if q.Sort == field {
		q.Dir = q.ReverseDir()
	} else {
		q.Dir = "asc"
	}
	q.Sort = field
	q.Page = 0
	return q.url()
}

func (q ListQuery) url() string {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("size", strconv.Itoa(q.Size))
	v.Set("sort", q.Sort)
	v.Set("dir", q.Dir)
	if q.Keyword != "" {
		v.Set("keyword", q.Keyword)
	}
	if q.DateFrom != "" {
		v.Set("dateFrom", q.DateFrom)
	}
	return "/items?" + v.Encode()
}
