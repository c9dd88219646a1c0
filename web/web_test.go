package web_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Skryldev/itemstore/db"
	"github.com/Skryldev/itemstore/migrations"
	"github.com/Skryldev/itemstore/models"
	"github.com/Skryldev/itemstore/service"
	"github.com/Skryldev/itemstore/web"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// ─────────────────────────────────────────────────────────────────────────────
// Test fixture
// ─────────────────────────────────────────────────────────────────────────────

type fixture struct {
	router http.Handler
	items  *service.ItemService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "items.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if err := migrations.Up(ctx, migrations.Options{DriverName: "sqlite3", DSN: dsn, Logger: logger}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stats := db.NewQueryStats()
	database, err := db.Open(db.Config{
		DSN:          dsn,
		DriverName:   "sqlite3",
		MaxOpenConns: 1,
		Hooks:        []db.Hook{db.NewMetricsHook(stats)},
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	items := service.New(database, logger)
	router, err := web.NewRouter(web.Deps{Items: items, DB: database, Stats: stats, Logger: logger})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return &fixture{router: router, items: items}
}

func (f *fixture) do(t *testing.T, method, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) create(t *testing.T, name, desc string) *models.Item {
	t.Helper()
	it, err := f.items.Create(context.Background(), models.CreateItemParams{Name: name, Description: desc})
	if err != nil {
		t.Fatalf("create %q: %v", name, err)
	}
	return it
}

func flashOf(t *testing.T, rec *httptest.ResponseRecorder) (*http.Cookie, string) {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "flash" && c.MaxAge >= 0 {
			msg, err := url.QueryUnescape(c.Value)
			if err != nil {
				t.Fatalf("unescape flash: %v", err)
			}
			return c, msg
		}
	}
	return nil, ""
}

func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, status int, location string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != location {
		t.Fatalf("expected redirect to %q, got %q", location, got)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// List
// ─────────────────────────────────────────────────────────────────────────────

func TestRoot_RedirectsToItems(t *testing.T) {
	f := newFixture(t)
	assertRedirect(t, f.do(t, http.MethodGet, "/", nil), http.StatusFound, "/items")
}

func TestList_RendersItems(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Desk lamp", "warm light")
	f.create(t, "Chair", "")

	rec := f.do(t, http.MethodGet, "/items", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Desk lamp", "warm light", "Chair", "2 item(s)"} {
		if !strings.Contains(body, want) {
			t.Fatalf("list missing %q", want)
		}
	}
}

func TestList_BadNumbersFallBackToDefaults(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Only", "")

	rec := f.do(t, http.MethodGet, "/items?page=abc&size=-&sort=bogus&dir=up", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Only") {
		t.Fatal("item missing from fallback listing")
	}
	// The unknown field is not echoed back into the form or the links.
	if strings.Contains(body, "bogus") || !strings.Contains(body, `name="sort" value="createdAt"`) {
		t.Fatalf("unknown sort field echoed:\n%s", body)
	}
}

func TestList_HugePageIndex(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Only", "")

	for _, page := range []string{"9223372036854775807", "2147483648"} {
		rec := f.do(t, http.MethodGet, "/items?page="+page+"&size=100", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("page %s: status %d: %s", page, rec.Code, rec.Body.String())
		}
		if strings.Contains(rec.Body.String(), "<td>Only</td>") {
			t.Fatalf("page %s: item shown on a page past the end", page)
		}
	}
}

func TestList_SortLinksOnlyWhenUnfiltered(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Desk lamp", "")

	plain := f.do(t, http.MethodGet, "/items?sort=name&dir=asc", nil).Body.String()
	if !strings.Contains(plain, "sort=description") || !strings.Contains(plain, "Name ↑") {
		t.Fatalf("plain listing lacks sort controls:\n%s", plain)
	}

	for _, target := range []string{
		"/items?keyword=lamp&sort=name&dir=asc",
		"/items?dateFrom=2000-01-01&sort=name&dir=asc",
	} {
		body := f.do(t, http.MethodGet, target, nil).Body.String()
		if strings.Contains(body, "sort=description") || strings.Contains(body, "Name ↑") {
			t.Fatalf("%s: filtered listing offers sort controls:\n%s", target, body)
		}
		if !strings.Contains(body, "Created ↓") || !strings.Contains(body, `name="sort" value="createdAt"`) {
			t.Fatalf("%s: effective order not shown:\n%s", target, body)
		}
	}
}

func TestList_KeywordSearchNonASCII(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Купить продукты #1", "Важное дело")
	f.create(t, "Äpfel kaufen", "")

	for kw, want := range map[string]string{"купить": "Купить продукты #1", "ВАЖНОЕ": "Купить продукты #1", "äpfel": "Äpfel kaufen"} {
		body := f.do(t, http.MethodGet, "/items?keyword="+url.QueryEscape(kw), nil).Body.String()
		if !strings.Contains(body, want) || !strings.Contains(body, "1 item(s)") {
			t.Fatalf("search %q:\n%s", kw, body)
		}
	}
}

func TestList_KeywordSearch(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Desk lamp", "")
	f.create(t, "Chair", "pairs with a lamp")
	f.create(t, "Rug", "")

	body := f.do(t, http.MethodGet, "/items?keyword=+LAMP+", nil).Body.String()
	if !strings.Contains(body, "Desk lamp") || !strings.Contains(body, "Chair") || strings.Contains(body, "Rug") {
		t.Fatalf("unexpected search result:\n%s", body)
	}
}

func TestList_KeywordTakesPrecedenceOverDate(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Desk lamp", "")
	f.create(t, "Rug", "")

	// The date is in the future; only the keyword applies.
	body := f.do(t, http.MethodGet, "/items?keyword=lamp&dateFrom=2999-01-01", nil).Body.String()
	if !strings.Contains(body, "Desk lamp") || strings.Contains(body, "Rug") {
		t.Fatalf("keyword and date combined:\n%s", body)
	}
}

func TestList_DateFilter(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Desk lamp", "")

	future := f.do(t, http.MethodGet, "/items?dateFrom=2999-01-01", nil).Body.String()
	if strings.Contains(future, "Desk lamp") {
		t.Fatal("future date filter should exclude the item")
	}
	bad := f.do(t, http.MethodGet, "/items?dateFrom=yesterday", nil).Body.String()
	if !strings.Contains(bad, "Desk lamp") {
		t.Fatal("malformed date should fall back to the full listing")
	}
}

func TestList_ShowsAndClearsFlash(t *testing.T) {
	f := newFixture(t)
	cookie := &http.Cookie{Name: "flash", Value: url.QueryEscape("success|Saved it")}

	rec := f.do(t, http.MethodGet, "/items", nil, cookie)
	if !strings.Contains(rec.Body.String(), "Saved it") {
		t.Fatal("flash not rendered")
	}
	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "flash" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("flash cookie not cleared")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Create
// ─────────────────────────────────────────────────────────────────────────────

func TestNewForm(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/items/new", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `action="/items"`) {
		t.Fatalf("unexpected form: %d\n%s", rec.Code, rec.Body.String())
	}
}

func TestCreate_RedirectsWithFlash(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/items", url.Values{"name": {"Bookshelf"}, "description": {"oak"}})

	assertRedirect(t, rec, http.StatusSeeOther, "/items")
	if _, msg := flashOf(t, rec); !strings.Contains(msg, "Bookshelf") {
		t.Fatalf("unexpected flash %q", msg)
	}
	all, _ := f.items.ListAll(context.Background())
	if len(all) != 1 || all[0].Name != "Bookshelf" || all[0].Description != "oak" {
		t.Fatalf("unexpected items %+v", all)
	}
}

func TestCreate_IgnoresPostedID(t *testing.T) {
	f := newFixture(t)
	existing := f.create(t, "Original", "")

	rec := f.do(t, http.MethodPost, "/items", url.Values{"id": {existing.ID.String()}, "name": {"Second"}})
	assertRedirect(t, rec, http.StatusSeeOther, "/items")

	all, _ := f.items.ListAll(context.Background())
	if len(all) != 2 {
		t.Fatalf("forged id turned create into update: %d items", len(all))
	}
}

func TestCreate_ValidationRerendersForm(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/items", url.Values{"name": {"  "}, "description": {"kept"}})

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Name must not be blank") || !strings.Contains(body, "kept") {
		t.Fatalf("form not re-rendered with errors:\n%s", body)
	}
	if all, _ := f.items.ListAll(context.Background()); len(all) != 0 {
		t.Fatal("invalid item persisted")
	}
}

func TestCreate_NameTooLong(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/items", url.Values{"name": {strings.Repeat("n", 51)}})
	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), "at most 50") {
		t.Fatalf("expected length error, got %d", rec.Code)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Edit
// ─────────────────────────────────────────────────────────────────────────────

func TestEditForm_Prefilled(t *testing.T) {
	f := newFixture(t)
	it := f.create(t, "Stool", "three legs")

	rec := f.do(t, http.MethodGet, "/items/edit/"+it.ID.String(), nil)
	body := rec.Body.String()
	if rec.Code != http.StatusOK || !strings.Contains(body, `value="Stool"`) || !strings.Contains(body, "three legs") {
		t.Fatalf("edit form not prefilled: %d\n%s", rec.Code, body)
	}
}

func TestEditForm_NotFound(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		rec := f.do(t, http.MethodGet, "/items/edit/"+id, nil)
		assertRedirect(t, rec, http.StatusFound, "/items")
		if _, msg := flashOf(t, rec); !strings.Contains(msg, "Record with ID "+id+" not found") {
			t.Fatalf("unexpected flash %q", msg)
		}
	}
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	it := f.create(t, "Stool", "")

	rec := f.do(t, http.MethodPost, "/items/edit/"+it.ID.String(), url.Values{"name": {"Bar stool"}, "description": {"tall"}})
	assertRedirect(t, rec, http.StatusSeeOther, "/items")

	got, err := f.items.GetByID(context.Background(), it.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Bar stool" || got.Description != "tall" || !got.CreatedAt.Equal(it.CreatedAt) || !got.IsUpdated() {
		t.Fatalf("unexpected item after update: %+v", got)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture(t)
	id := uuid.NewString()
	rec := f.do(t, http.MethodPost, "/items/edit/"+id, url.Values{"name": {"Ghost"}})
	assertRedirect(t, rec, http.StatusFound, "/items")
	if _, msg := flashOf(t, rec); !strings.Contains(msg, "not found") {
		t.Fatalf("unexpected flash %q", msg)
	}
}

func TestUpdate_Validation(t *testing.T) {
	f := newFixture(t)
	it := f.create(t, "Stool", "")

	rec := f.do(t, http.MethodPost, "/items/edit/"+it.ID.String(), url.Values{"name": {""}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	got, _ := f.items.GetByID(context.Background(), it.ID)
	if got.Name != "Stool" {
		t.Fatalf("invalid update persisted: %q", got.Name)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete
// ─────────────────────────────────────────────────────────────────────────────

func TestDelete(t *testing.T) {
	f := newFixture(t)
	it := f.create(t, "Old box", "")
	target := "/items/delete/" + it.ID.String()

	rec := f.do(t, http.MethodGet, target, nil)
	assertRedirect(t, rec, http.StatusFound, "/items")
	if _, msg := flashOf(t, rec); !strings.Contains(msg, "deleted") {
		t.Fatalf("unexpected flash %q", msg)
	}

	rec = f.do(t, http.MethodGet, target, nil)
	assertRedirect(t, rec, http.StatusFound, "/items")
	if _, msg := flashOf(t, rec); !strings.Contains(msg, "not found") {
		t.Fatalf("second delete should report not found, got %q", msg)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Health / static / 404
// ─────────────────────────────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Counted", "")

	rec := f.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var body struct {
		Status       string `json:"status"`
		Driver       string `json:"driver"`
		Placeholders string `json:"placeholders"`
		Queries      struct {
			Total int64 `json:"total"`
		} `json:"queries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Driver != "sqlite3" || body.Placeholders != "question" || body.Queries.Total == 0 {
		t.Fatalf("unexpected health body %s", rec.Body.String())
	}
}

func TestStaticStylesheet(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/static/app.css", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), ".flash") {
		t.Fatalf("stylesheet not served: %d", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
