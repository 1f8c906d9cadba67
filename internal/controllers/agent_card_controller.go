package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arenabeat/resultgate/pkg/domain"
)

type agentCardController struct{ card domain.AgentCard }

func NewAgentCardController(card domain.AgentCard) *agentCardController {
	return &agentCardController{card: card}
}

func (h *agentCardController) Handle(c *gin.Context) {
	c.JSON(http.StatusOK, h.card)
}
