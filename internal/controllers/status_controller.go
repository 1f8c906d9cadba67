package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type statusController struct {
	started time.Time
	now     func() time.Time
}

// NewStatusController answers liveness probes. It never touches the watch
// directory, so orchestration can tell "process is up" apart from "job has
// completed".
func NewStatusController(started time.Time, now func() time.Time) *statusController {
	if now == nil {
		now = time.Now
	}
	return &statusController{started: started, now: now}
}

func (h *statusController) Handle(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": h.now().Sub(h.started).Truncate(time.Second).String(),
	})
}
