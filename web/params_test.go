package web

import (
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Skryldev/itemstore/service"
)

func queryFor(t *testing.T, raw string) ListQuery {
	t.Helper()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/items?"+raw, nil)
	return parseListQuery(c)
}

func TestParseListQuery_Defaults(t *testing.T) {
	q := queryFor(t, "")
	want := ListQuery{Page: 0, Size: 10, Sort: "createdAt", Dir: "desc"}
	if q != want {
		t.Fatalf("got %+v, want %+v", q, want)
	}
}

func TestParseListQuery_Normalises(t *testing.T) {
	q := queryFor(t, "page=-2&size=500&sort=name&dir=DESC")
	want := ListQuery{Page: 0, Size: 100, Sort: "name", Dir: "desc"}
	if q != want {
		t.Fatalf("got %+v, want %+v", q, want)
	}

	q = queryFor(t, "page=x&size=y&dir=sideways&sort=price")
	if q.Page != 0 || q.Size != 10 || q.Dir != "asc" || q.Sort != "createdAt" {
		t.Fatalf("fallbacks not applied: %+v", q)
	}

	q = queryFor(t, "page=9223372036854775807")
	if q.Page != service.MaxPageIndex {
		t.Fatalf("page not capped: %d", q.Page)
	}
}

func TestParseListQuery_FilteredUsesNewestFirst(t *testing.T) {
	q := queryFor(t, "sort=name&dir=asc&keyword=+lamp+&dateFrom=2024-01-01")
	want := ListQuery{Page: 0, Size: 10, Sort: "createdAt", Dir: "desc", Keyword: "lamp", DateFrom: "2024-01-01"}
	if q != want {
		t.Fatalf("got %+v, want %+v", q, want)
	}
	if !q.Filtered() {
		t.Fatal("keyword query not reported as filtered")
	}
	if q.SortArrow("createdAt") != " ↓" || q.SortArrow("name") != "" {
		t.Fatalf("arrows: %q %q", q.SortArrow("createdAt"), q.SortArrow("name"))
	}

	if q := queryFor(t, "dateFrom=2024-01-01&sort=updatedAt"); !q.Filtered() || q.Sort != "createdAt" {
		t.Fatalf("date query: %+v", q)
	}
	if q := queryFor(t, "sort=updatedAt&dir=asc"); q.Filtered() || q.SortArrow("updatedAt") != " ↑" {
		t.Fatalf("plain query: %+v", q)
	}
}

func TestListQuery_URLs(t *testing.T) {
	q := ListQuery{Page: 3, Size: 20, Sort: "name", Dir: "asc", Keyword: "a&b"}

	u, err := url.Parse(q.PageURL(4))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	v := u.Query()
	if v.Get("page") != "4" || v.Get("size") != "20" || v.Get("keyword") != "a&b" || v.Has("dateFrom") {
		t.Fatalf("page url: %s", u)
	}

	// Same column flips direction and resets to the first page.
	u, _ = url.Parse(q.SortURL("name"))
	if u.Query().Get("dir") != "desc" || u.Query().Get("page") != "0" {
		t.Fatalf("sort url same column: %s", u)
	}
	u, _ = url.Parse(q.SortURL("createdAt"))
	if u.Query().Get("dir") != "asc" || u.Query().Get("sort") != "createdAt" {
		t.Fatalf("sort url new column: %s", u)
	}
	if q.ReverseDir() != "desc" {
		t.Fatalf("reverse of asc: %s", q.ReverseDir())
	}
}
