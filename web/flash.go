package web

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const flashCookie = "flash"

// Flash is a one-shot message carried across a redirect in a cookie.
type Flash struct {
	Kind    string // "success" or "error"
	Message string
}

func setFlash(c *gin.Context, kind, message string) {
	// gin query-escapes the value and Cookie unescapes it.
	c.SetCookie(flashCookie, kind+"|"+message, 60, "/", "", false, true)
}

// popFlash reads and clears the pending flash, if any.
func popFlash(c *gin.Context) *Flash {
	raw, err := c.Cookie(flashCookie)
	if err != nil || raw == "" {
		return nil
	}
	c.SetCookie(flashCookie, "", -1, "/", "", false, true)

	kind, msg, ok := strings.Cut(raw, "|")
	if !ok {
		return &Flash{Kind: "success", Message: raw}
	}
	return &Flash{Kind: kind, Message: msg}
}
