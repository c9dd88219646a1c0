package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Skryldev/itemstore/db"
	"github.com/Skryldev/itemstore/models"
	"github.com/google/uuid"
)

// ─────────────────────────────────────────────────────────────────────────────
// ItemRepository interface — for mocking in tests
// ─────────────────────────────────────────────────────────────────────────────

var (
	// ErrInvalidSort is returned when a Sort names a field outside SortFields.
	ErrInvalidSort = errors.New("repo: invalid sort field")

	// ErrInvalidPage is returned for a negative page index or a non-positive size.
	ErrInvalidPage = errors.New("repo: invalid page request")
)

// maxOffset bounds pageIndex*pageSize so the OFFSET bind stays positive.
const maxOffset = math.MaxInt64

// ItemRepository defines the contract for item persistence operations.
// Create and Update validate their params and return *models.ValidationError
// on bad input; lookups of a missing id return db.ErrNotFound.
type ItemRepository interface {
	Create(ctx context.Context, params models.CreateItemParams) (*models.Item, error)
	CreateMany(ctx context.Context, params []models.CreateItemParams) ([]models.Item, error)
	Update(ctx context.Context, params models.UpdateItemParams) (*models.Item, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	FindAll(ctx context.Context) ([]models.Item, error)
	FindPage(ctx context.Context, filter Filter, sort Sort, pageIndex, pageSize int) (models.Page, error)
	SearchByKeyword(ctx context.Context, keyword string, pageIndex, pageSize int) (models.Page, error)
	FindByCreatedAtFrom(ctx context.Context, from time.Time, pageIndex, pageSize int) (models.Page, error)
	FindByNameContaining(ctx context.Context, fragment string, pageIndex, pageSize int) (models.Page, error)
	Count(ctx context.Context) (int64, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Filter and Sort
// ─────────────────────────────────────────────────────────────────────────────

// Filter narrows a page query. Zero-valued fields are ignored; set fields
// are combined with AND.
type Filter struct {
	// Keyword matches name OR description, case-insensitively.
	Keyword string
	// NameContains matches name only, case-insensitively.
	NameContains string
	// CreatedFrom keeps items with created_at >= CreatedFrom.
	CreatedFrom time.Time
}

// Sort orders a page query by one item attribute. Ties are broken by id in
// the same direction so paging is stable.
type Sort struct {
	Field string
	Desc  bool
}

// SortFields maps item attribute names onto their columns.
var SortFields = map[string]string{
	"id":          "id",
	"name":        "name",
	"description": "description",
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
}

// IsSortField reports whether name is accepted by Sort.
func IsSortField(name string) bool {
	_, ok := SortFields[name]
	return ok
}

func (s Sort) orderBy() (string, error) {
	col, ok := SortFields[s.Field]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidSort, s.Field)
	}
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	if col == "id" {
		return "id " + dir, nil
	}
	return col + " " + dir + ", id " + dir, nil
}

func (f Filter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.Keyword != "" {
		p := containsPattern(f.Keyword)
		clauses = append(clauses,
			`(LOWER(name) LIKE LOWER(?) ESCAPE '!' OR LOWER(COALESCE(description, '')) LIKE LOWER(?) ESCAPE '!')`)
		args = append(args, p, p)
	}
	if f.NameContains != "" {
		clauses = append(clauses, `LOWER(name) LIKE LOWER(?) ESCAPE '!'`)
		args = append(args, containsPattern(f.NameContains))
	}
	if !f.CreatedFrom.IsZero() {
		clauses = append(clauses, `created_at >= ?`)
		args = append(args, f.CreatedFrom.UTC())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern builds a LIKE pattern matching s anywhere, with LIKE
// metacharacters in s taken literally. Case folding happens in SQL, on both
// sides of LIKE, so the column and the pattern go through the same lower().
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// ─────────────────────────────────────────────────────────────────────────────
// itemRepo — concrete implementation
// ─────────────────────────────────────────────────────────────────────────────

// Clock supplies the current time for timestamps.
type Clock func() time.Time

// Option configures an itemRepo.
type Option func(*itemRepo)

// WithClock replaces time.Now, mainly for deterministic tests.
func WithClock(c Clock) Option {
	return func(r *itemRepo) { r.clock = c }
}

// itemRepo is the production implementation backed by a db.Querier.
type itemRepo struct {
	q     db.Querier
	clock Clock
}

// NewItemRepo returns an ItemRepository backed by q.
// q can be a *db.DB or *db.Tx — both satisfy db.Querier.
func NewItemRepo(q db.Querier, opts ...Option) ItemRepository {
	r := &itemRepo{q: q, clock: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// now is truncated to microseconds, the finest precision every supported
// backend stores, so returned items equal what a later read yields.
func (r *itemRepo) now() time.Time {
	return r.clock().UTC().Truncate(time.Microsecond)
}

// ─────────────────────────────────────────────────────────────────────────────
// SQL constants — written with `?`, rebound per dialect by package db
// ─────────────────────────────────────────────────────────────────────────────

const (
	itemColumns = `id, name, description, created_at, updated_at`

	sqlInsertItem = `
		INSERT INTO items (id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	sqlGetItemByID = `
		SELECT ` + itemColumns + `
		FROM   items
		WHERE  id = ?`

	sqlUpdateItem = `
		UPDATE items
		SET    name = ?, description = ?, updated_at = ?
		WHERE  id = ?`

	sqlDeleteItem = `
		DELETE FROM items WHERE id = ?`

	sqlListItems = `
		SELECT ` + itemColumns + `
		FROM   items`

	sqlCountItems = `
		SELECT COUNT(*) FROM items`
)

// ─────────────────────────────────────────────────────────────────────────────
// Create / Update / Delete
// ─────────────────────────────────────────────────────────────────────────────

// Create validates params, assigns a fresh id and sets both timestamps to the
// same instant.
func (r *itemRepo) Create(ctx context.Context, params models.CreateItemParams) (*models.Item, error) {
	params = params.Normalize()
	if err := params.Validate(); err != nil {
		return nil, err
	}

	now := r.now()
	item := &models.Item{
		ID:          uuid.New(),
		Name:        params.Name,
		Description: params.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := r.q.Exec(ctx, sqlInsertItem,
		item.ID, item.Name, nullString(item.Description), item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("repo/item: create: %w", err)
	}
	return item, nil
}

// CreateMany validates every entry before writing any, then inserts them
// through one prepared statement. Entry i is stamped i microseconds after
// entry 0, so created_at follows input order. Pass a
// repository built on a *db.Tx to make the batch all or nothing.
func (r *itemRepo) CreateMany(ctx context.Context, params []models.CreateItemParams) ([]models.Item, error) {
	items := make([]models.Item, len(params))
	now := r.now()
	for i, p := range params {
		p = p.Normalize()
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("repo/item: create many: entry %d: %w", i, err)
		}
		ts := now.Add(time.Duration(i) * time.Microsecond)
		items[i] = models.Item{
			ID:          uuid.New(),
			Name:        p.Name,
			Description: p.Description,
			CreatedAt:   ts,
			UpdatedAt:   ts,
		}
	}

	err := db.BatchExec(ctx, r.q, sqlInsertItem, items, func(it models.Item) []any {
		return []any{it.ID, it.Name, nullString(it.Description), it.CreatedAt, it.UpdatedAt}
	})
	if err != nil {
		return nil, fmt.Errorf("repo/item: create many: %w", err)
	}
	return items, nil
}

// Update replaces name and description of an existing item and refreshes
// updated_at. created_at is never written. updated_at always moves forward,
// even when the clock has not advanced since the previous write.
// Returns db.ErrNotFound when the id does not exist.
func (r *itemRepo) Update(ctx context.Context, params models.UpdateItemParams) (*models.Item, error) {
	params = params.Normalize()
	if err := params.Validate(); err != nil {
		return nil, err
	}

	current, err := r.FindByID(ctx, params.ID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	if !now.After(current.UpdatedAt) {
		now = current.UpdatedAt.Add(time.Microsecond)
	}

	res, err := r.q.Exec(ctx, sqlUpdateItem,
		params.Name, nullString(params.Description), now, params.ID)
	if err != nil {
		return nil, fmt.Errorf("repo/item: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("repo/item: update: %w", err)
	}
	if n == 0 {
		// Deleted between the lookup and the write.
		return nil, fmt.Errorf("repo/item: update %s: %w", params.ID, db.ErrNotFound)
	}
	return r.FindByID(ctx, params.ID)
}

// Delete removes an item by id. Deleting a missing id is not an error.
func (r *itemRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.q.Exec(ctx, sqlDeleteItem, id); err != nil {
		return fmt.Errorf("repo/item: delete: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Lookups
// ─────────────────────────────────────────────────────────────────────────────

// FindByID returns a single item by primary key.
// Returns db.ErrNotFound when no record matches.
func (r *itemRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	return scanItem(r.q.QueryRow(ctx, sqlGetItemByID, id))
}

// FindAll returns every item in storage order.
func (r *itemRepo) FindAll(ctx context.Context) ([]models.Item, error) {
	return r.list(ctx, sqlListItems)
}

// Count returns the total number of items.
func (r *itemRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRow(ctx, sqlCountItems).Scan(&n); err != nil {
		return 0, fmt.Errorf("repo/item: count: %w", err)
	}
	return n, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Paged queries
// ─────────────────────────────────────────────────────────────────────────────

// FindPage returns at most pageSize items starting at pageIndex*pageSize,
// ordered by sort, plus the number of items matching filter.
func (r *itemRepo) FindPage(ctx context.Context, filter Filter, sort Sort, pageIndex, pageSize int) (models.Page, error) {
	if pageIndex < 0 || pageSize <= 0 || int64(pageIndex) > maxOffset/int64(pageSize) {
		return models.Page{}, fmt.Errorf("%w: page=%d size=%d", ErrInvalidPage, pageIndex, pageSize)
	}
	orderBy, err := sort.orderBy()
	if err != nil {
		return models.Page{}, err
	}
	where, args := filter.where()

	var total int64
	if err := r.q.QueryRow(ctx, sqlCountItems+" "+where, args...).Scan(&total); err != nil {
		return models.Page{}, fmt.Errorf("repo/item: count page: %w", err)
	}

	query := sqlListItems + " " + where + " ORDER BY " + orderBy + " LIMIT ? OFFSET ?"
	pageArgs := append(append([]any{}, args...), pageSize, int64(pageIndex)*int64(pageSize))
	items, err := r.list(ctx, query, pageArgs...)
	if err != nil {
		return models.Page{}, err
	}

	return models.Page{Items: items, Total: total, Index: pageIndex, Size: pageSize}, nil
}

var newestFirst = Sort{Field: "createdAt", Desc: true}

// SearchByKeyword matches keyword against name OR description,
// case-insensitively, newest first.
func (r *itemRepo) SearchByKeyword(ctx context.Context, keyword string, pageIndex, pageSize int) (models.Page, error) {
	return r.FindPage(ctx, Filter{Keyword: keyword}, newestFirst, pageIndex, pageSize)
}

// FindByCreatedAtFrom returns items created at or after from, newest first.
func (r *itemRepo) FindByCreatedAtFrom(ctx context.Context, from time.Time, pageIndex, pageSize int) (models.Page, error) {
	return r.FindPage(ctx, Filter{CreatedFrom: from}, newestFirst, pageIndex, pageSize)
}

// FindByNameContaining matches fragment against name only, case-insensitively.
func (r *itemRepo) FindByNameContaining(ctx context.Context, fragment string, pageIndex, pageSize int) (models.Page, error) {
	return r.FindPage(ctx, Filter{NameContains: fragment}, newestFirst, pageIndex, pageSize)
}

// ─────────────────────────────────────────────────────────────────────────────
// scanItem — centralised column mapping
// ─────────────────────────────────────────────────────────────────────────────

type scanner interface {
	Scan(dest ...any) error
}

func scanInto(s scanner, it *models.Item) error {
	var desc sql.NullString
	if err := s.Scan(&it.ID, &it.Name, &desc, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return err
	}
	it.Description = desc.String
	it.CreatedAt = it.CreatedAt.UTC()
	it.UpdatedAt = it.UpdatedAt.UTC()
	return nil
}

// scanItem scans a single item row.
func scanItem(row *db.Row) (*models.Item, error) {
	it := &models.Item{}
	if err := scanInto(row, it); err != nil {
		return nil, fmt.Errorf("repo/item: %w", err)
	}
	return it, nil
}

func (r *itemRepo) list(ctx context.Context, query string, args ...any) ([]models.Item, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repo/item: list: %w", err)
	}
	defer rows.Close()

	items := make([]models.Item, 0)
	for rows.Next() {
		var it models.Item
		if err := scanInto(rows, &it); err != nil {
			return nil, fmt.Errorf("repo/item: scan: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo/item: rows: %w", err)
	}
	return items, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Compile-time interface assertion
// ─────────────────────────────────────────────────────────────────────────────

var _ ItemRepository = (*itemRepo)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// Null helpers
// ─────────────────────────────────────────────────────────────────────────────

// nullString stores an empty description as NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
