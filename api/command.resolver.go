package api

import (
	"net/http"
	"strings"

	"factortrader/internal/app"
	"factortrader/internal/domain"

	"github.com/gin-gonic/gin"
)

type commandRequest struct {
	Command string `json:"command"`
}

// command always answers with the command envelope, including for bad
// request bodies, so clients only ever render one shape.
func (m ApiHandler) command(c *gin.Context) {
	var requestBody commandRequest
	if err := c.ShouldBindJSON(&requestBody); err != nil || strings.TrimSpace(requestBody.Command) == "" {
		c.JSON(http.StatusBadRequest, app.Response{
			Type:    domain.CommandError,
			Message: "request body must be {\"command\": \"...\"}",
		})
		return
	}

	resp := m.CommandApp.Execute(c.Request.Context(), requestBody.Command)
	c.JSON(resp.Status, resp)
}
