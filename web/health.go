package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type poolStats struct {
	MaxOpen   int   `json:"max_open"`
	Open      int   `json:"open"`
	InUse     int   `json:"in_use"`
	Idle      int   `json:"idle"`
	WaitCount int64 `json:"wait_count"`
}

// health reports database reachability. It answers 503 when the ping fails
// so load balancers stop routing to the instance.
func (h *handler) health(c *gin.Context) {
	body := gin.H{"driver": h.db.DriverName(), "placeholders": h.db.Dialect().String()}
	status := http.StatusOK

	if err := h.db.Ping(c.Request.Context()); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "unavailable"
		body["error"] = err.Error()
	} else {
		body["status"] = "ok"
	}

	s := h.db.Stats()
	body["pool"] = poolStats{
		MaxOpen:   s.MaxOpenConnections,
		Open:      s.OpenConnections,
		InUse:     s.InUse,
		Idle:      s.Idle,
		WaitCount: s.WaitCount,
	}
	if h.stats != nil {
		body["queries"] = h.stats.Snapshot()
	}

	c.JSON(status, body)
}
