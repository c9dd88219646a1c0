// Package service sits between the HTTP handlers and the item repository.
// It normalises user-supplied paging and sorting parameters and owns the
// fallback policy for malformed date filters.
package service

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/Skryldev/itemstore/db"
	"github.com/Skryldev/itemstore/models"
	"github.com/Skryldev/itemstore/repo"
	"github.com/google/uuid"
)

const (
	DefaultPageSize  = 10
	MaxPageSize      = 100
	DefaultSortField = "createdAt"
	DefaultSortDir   = "desc"

	// MaxPageIndex caps the page number so page*size always fits an OFFSET.
	MaxPageIndex = math.MaxInt32

	// DateLayout is the accepted format of the date-from filter.
	DateLayout = time.DateOnly
)

// ItemService is safe for concurrent use; it holds no per-request state.
type ItemService struct {
	db       *db.DB
	items    repo.ItemRepository
	repoOpts []repo.Option
	logger   *slog.Logger
}

// New builds the service on top of database. repoOpts are applied to every
// repository the service creates, including the one used while seeding.
func New(database *db.DB, logger *slog.Logger, repoOpts ...repo.Option) *ItemService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ItemService{
		db:       database,
		items:    repo.NewItemRepo(database, repoOpts...),
		repoOpts: repoOpts,
		logger:   logger,
	}
}

// NormalizePage clamps paging input. A negative page becomes 0 and pages
// above MaxPageIndex are capped. A non-positive size becomes DefaultPageSize
// and sizes above MaxPageSize are capped.
func NormalizePage(page, size int) (int, int) {
	switch {
	case page < 0:
		page = 0
	case page > MaxPageIndex:
		page = MaxPageIndex
	}
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	return page, size
}

// IsSortField reports whether ListPaginated can order by name.
func IsSortField(name string) bool { return repo.IsSortField(name) }

// ─────────────────────────────────────────────────────────────────────────────
// Listing
// ─────────────────────────────────────────────────────────────────────────────

// ListAll returns every item, unordered.
func (s *ItemService) ListAll(ctx context.Context) ([]models.Item, error) {
	return s.items.FindAll(ctx)
}

// ListPaginated returns one page ordered by sortField. dir is matched
// case-insensitively and anything other than "desc" sorts ascending. An
// unknown sortField falls back to DefaultSortField.
func (s *ItemService) ListPaginated(ctx context.Context, page, size int, sortField, dir string) (models.Page, error) {
	page, size = NormalizePage(page, size)
	if !repo.IsSortField(sortField) {
		s.logger.WarnContext(ctx, "service: unknown sort field, using default",
			slog.String("sort", sortField), slog.String("default", DefaultSortField))
		sortField = DefaultSortField
	}
	sort := repo.Sort{Field: sortField, Desc: strings.EqualFold(strings.TrimSpace(dir), "desc")}
	return s.items.FindPage(ctx, repo.Filter{}, sort, page, size)
}

// Search matches keyword against name or description. The caller trims it.
func (s *ItemService) Search(ctx context.Context, keyword string, page, size int) (models.Page, error) {
	page, size = NormalizePage(page, size)
	return s.items.SearchByKeyword(ctx, keyword, page, size)
}

// FilterByDateFrom returns items created on or after the start (UTC) of the
// given YYYY-MM-DD day. Input that does not parse is not an error: the
// result is the unfiltered newest-first listing instead.
func (s *ItemService) FilterByDateFrom(ctx context.Context, date string, page, size int) (models.Page, error) {
	from, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), time.UTC)
	if err != nil {
		s.logger.DebugContext(ctx, "service: unparseable date filter, listing all",
			slog.String("date_from", date))
		return s.ListPaginated(ctx, page, size, DefaultSortField, DefaultSortDir)
	}
	page, size = NormalizePage(page, size)
	return s.items.FindByCreatedAtFrom(ctx, from, page, size)
}

// FindByName matches fragment against names only.
func (s *ItemService) FindByName(ctx context.Context, fragment string, page, size int) (models.Page, error) {
	page, size = NormalizePage(page, size)
	return s.items.FindByNameContaining(ctx, fragment, page, size)
}

// ─────────────────────────────────────────────────────────────────────────────
// Single items
// ─────────────────────────────────────────────────────────────────────────────

// GetByID returns db.ErrNotFound when the item does not exist.
func (s *ItemService) GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	return s.items.FindByID(ctx, id)
}

// Save creates the item when its id is unset and updates it otherwise.
// Handlers that know which one they want call Create or Update directly.
func (s *ItemService) Save(ctx context.Context, item models.Item) (*models.Item, error) {
	if item.ID == uuid.Nil {
		return s.Create(ctx, models.CreateItemParams{Name: item.Name, Description: item.Description})
	}
	return s.Update(ctx, models.UpdateItemParams{ID: item.ID, Name: item.Name, Description: item.Description})
}

func (s *ItemService) Create(ctx context.Context, params models.CreateItemParams) (*models.Item, error) {
	item, err := s.items.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "service: item created", slog.String("id", item.ID.String()))
	return item, nil
}

func (s *ItemService) Update(ctx context.Context, params models.UpdateItemParams) (*models.Item, error) {
	item, err := s.items.Update(ctx, params)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "service: item updated", slog.String("id", item.ID.String()))
	return item, nil
}

// Delete is idempotent.
func (s *ItemService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.items.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "service: item deleted", slog.String("id", id.String()))
	return nil
}
