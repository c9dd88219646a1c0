package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Skryldev/itemstore/db"
	"github.com/Skryldev/itemstore/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// List
// ─────────────────────────────────────────────────────────────────────────────

// listItems resolves the query in a fixed order: a non-blank keyword
// searches; otherwise a non-blank dateFrom filters; otherwise the plain
// sorted listing. Keyword and date are never combined. The view shows the
// order actually applied, and sort links only for the plain listing.
func (h *handler) listItems(c *gin.Context) {
	ctx := c.Request.Context()
	q := parseListQuery(c)

	var (
		page models.Page
		err  error
	)
	switch {
	case q.Keyword != "":
		page, err = h.items.Search(ctx, q.Keyword, q.Page, q.Size)
	case q.DateFrom != "":
		page, err = h.items.FilterByDateFrom(ctx, q.DateFrom, q.Page, q.Size)
	default:
		page, err = h.items.ListPaginated(ctx, q.Page, q.Size, q.Sort, q.Dir)
	}
	if err != nil {
		h.serverError(c, err)
		return
	}

	pages := make([]int, page.TotalPages())
	for i := range pages {
		pages[i] = i
	}

	c.HTML(http.StatusOK, "list.html", gin.H{
		"title":          "Items",
		"query":          q,
		"page":           page,
		"items":          page.Items,
		"pages":          pages,
		"currentPage":    page.Index,
		"pageSize":       page.Size,
		"sortable":       !q.Filtered(),
		"sortField":      q.Sort,
		"sortDir":        q.Dir,
		"reverseSortDir": q.ReverseDir(),
		"keyword":        q.Keyword,
		"dateFrom":       q.DateFrom,
		"totalPages":     page.TotalPages(),
		"totalItems":     page.Total,
		"flash":          popFlash(c),
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Create
// ─────────────────────────────────────────────────────────────────────────────

func (h *handler) newItemForm(c *gin.Context) {
	h.renderForm(c, http.StatusOK, formView{Title: "New item", Action: "/items"})
}

// createItem always inserts; an id posted with the form is ignored.
func (h *handler) createItem(c *gin.Context) {
	var params models.CreateItemParams
	if err := c.ShouldBind(&params); err != nil {
		h.renderForm(c, http.StatusBadRequest, formView{
			Title: "New item", Action: "/items", FormError: "The form could not be read.",
		})
		return
	}

	item, err := h.items.Create(c.Request.Context(), params)
	if err != nil {
		view := formView{Title: "New item", Action: "/items", Name: params.Name, Description: params.Description}
		if h.formFailed(c, err, view) {
			return
		}
		h.serverError(c, err)
		return
	}

	setFlash(c, "success", fmt.Sprintf("Item %q created", item.Name))
	c.Redirect(http.StatusSeeOther, "/items")
}

// ─────────────────────────────────────────────────────────────────────────────
// Edit
// ─────────────────────────────────────────────────────────────────────────────

func (h *handler) editItemForm(c *gin.Context) {
	id, ok := h.itemID(c)
	if !ok {
		return
	}
	item, err := h.items.GetByID(c.Request.Context(), id)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	h.renderForm(c, http.StatusOK, formView{
		Title:       "Edit item",
		Action:      "/items/edit/" + item.ID.String(),
		Item:        item,
		Name:        item.Name,
		Description: item.Description,
	})
}

func (h *handler) updateItem(c *gin.Context) {
	id, ok := h.itemID(c)
	if !ok {
		return
	}
	var params models.UpdateItemParams
	if err := c.ShouldBind(&params); err != nil {
		h.renderForm(c, http.StatusBadRequest, formView{
			Title: "Edit item", Action: "/items/edit/" + id.String(), FormError: "The form could not be read.",
		})
		return
	}
	params.ID = id

	item, err := h.items.Update(c.Request.Context(), params)
	if err != nil {
		if db.IsNotFound(err) {
			h.lookupFailed(c, err)
			return
		}
		view := formView{
			Title: "Edit item", Action: "/items/edit/" + id.String(),
			Name: params.Name, Description: params.Description,
		}
		if h.formFailed(c, err, view) {
			return
		}
		h.serverError(c, err)
		return
	}

	setFlash(c, "success", fmt.Sprintf("Item %q updated", item.Name))
	c.Redirect(http.StatusSeeOther, "/items")
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete
// ─────────────────────────────────────────────────────────────────────────────

// deleteItem looks the item up first so a missing id gets the not-found
// flash; the delete itself is idempotent.
func (h *handler) deleteItem(c *gin.Context) {
	id, ok := h.itemID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	item, err := h.items.GetByID(ctx, id)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	if err := h.items.Delete(ctx, id); err != nil {
		h.serverError(c, err)
		return
	}

	setFlash(c, "success", fmt.Sprintf("Item %q deleted", item.Name))
	c.Redirect(http.StatusFound, "/items")
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

type formView struct {
	Title       string
	Action      string
	Item        *models.Item
	Name        string
	Description string
	Errors      map[string]string
	FormError   string
}

func (h *handler) renderForm(c *gin.Context, status int, v formView) {
	c.HTML(status, "form.html", gin.H{
		"title":    v.Title,
		"form":     v,
		"nameMax":  models.NameMaxLen,
		"descMax":  models.DescriptionMaxLen,
		"isUpdate": v.Item != nil,
	})
}

// formFailed re-renders the form for input errors and reports whether it did.
func (h *handler) formFailed(c *gin.Context, err error, v formView) bool {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		v.Errors = ve.Fields
	case db.IsCheckViolation(err):
		v.FormError = "The item was rejected by the database: a value is out of range."
	default:
		return false
	}
	h.renderForm(c, http.StatusUnprocessableEntity, v)
	return true
}

func notFoundMessage(id string) string {
	return fmt.Sprintf("Record with ID %s not found", id)
}

// itemID parses the :id path parameter. A malformed id is treated like a
// missing record.
func (h *handler) itemID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		setFlash(c, "error", notFoundMessage(raw))
		c.Redirect(http.StatusFound, "/items")
		return uuid.Nil, false
	}
	return id, true
}

func (h *handler) lookupFailed(c *gin.Context, err error) {
	if db.IsNotFound(err) {
		setFlash(c, "error", notFoundMessage(c.Param("id")))
		c.Redirect(http.StatusFound, "/items")
		return
	}
	h.serverError(c, err)
}

func (h *handler) serverError(c *gin.Context, err error) {
	_ = c.Error(err)
	h.logger.ErrorContext(c.Request.Context(), "web: request failed",
		"method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	c.HTML(http.StatusInternalServerError, "error.html", gin.H{
		"title":   "Error",
		"status":  http.StatusInternalServerError,
		"message": "Something went wrong. Please try again later.",
	})
}

func (h *handler) recovered(c *gin.Context, rec any) {
	h.serverError(c, fmt.Errorf("panic: %v", rec))
	c.Abort()
}
