package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DisplayTimeLayout renders timestamps in the list view as "2024-03-01 | 14:05:09".
const DisplayTimeLayout = "2006-01-02 | 15:04:05"

// Field limits shared by validation and the form views.
const (
	NameMaxLen        = 50
	DescriptionMaxLen = 255
)

// Item represents a row in the "items" table.
// Fields map 1-to-1 with columns; a NULL description reads back as "".
type Item struct {
	ID          uuid.UUID
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsUpdated reports whether the item was modified after creation.
func (i Item) IsUpdated() bool { return !i.UpdatedAt.Equal(i.CreatedAt) }

func (i Item) FormattedCreatedAt() string { return formatTime(i.CreatedAt) }
func (i Item) FormattedUpdatedAt() string { return formatTime(i.UpdatedAt) }

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DisplayTimeLayout)
}

// CreateItemParams holds the fields a caller may set on a new item. The id and
// timestamps are always assigned by the repository.
type CreateItemParams struct {
	Name        string `form:"name" validate:"required,max=50"`
	Description string `form:"description" validate:"max=255"`
}

// Normalize trims surrounding whitespace from the text fields.
func (p CreateItemParams) Normalize() CreateItemParams {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	return p
}

// Validate checks the normalized params.
func (p CreateItemParams) Validate() error { return validateStruct(p) }

// UpdateItemParams replaces the editable fields of an existing item.
// Unlike a partial patch, both text fields are always written.
type UpdateItemParams struct {
	ID          uuid.UUID `form:"-"`
	Name        string    `form:"name" validate:"required,max=50"`
	Description string    `form:"description" validate:"max=255"`
}

// Normalize trims surrounding whitespace from the text fields.
func (p UpdateItemParams) Normalize() UpdateItemParams {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	return p
}

// Validate checks the normalized params.
func (p UpdateItemParams) Validate() error { return validateStruct(p) }
