package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StatusResponse summarizes the bot's roster and configuration.
type StatusResponse struct {
	Session      string `json:"session,omitempty" example:"default"`
	Prefix       string `json:"prefix" example:"."`
	Whitelisted  int64  `json:"whitelisted" example:"12"`
	Admins       int64  `json:"admins" example:"2"`
	EnabledChats int64  `json:"enabled_chats" example:"4"`
}

// Status godoc
// @ID          getStatus
// @Summary     Bot status
// @Description Whitelist and admin counts, chats with the bot enabled, and the active command prefix.
// @Tags        Status
// @Produce     json
// @Success     200 {object} StatusResponse
// @Failure     500 {object} ErrorResponse
// @Router      /status [get]
func (h *Handlers) Status(c *gin.Context) {
	ctx := c.Request.Context()
	roster, err := h.roster.RosterStats(ctx)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not read roster")
		return
	}
	prefix, err := h.prefix.Prefix(ctx)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not read prefix")
		return
	}
	ok(c, http.StatusOK, StatusResponse{
		Session:      h.session,
		Prefix:       prefix,
		Whitelisted:  roster.Whitelisted,
		Admins:       roster.Admins,
		EnabledChats: roster.EnabledChats,
	})
}

// Health godoc
// @ID          health
// @Summary     Liveness probe
// @Tags        Health
// @Produce     json
// @Success     200 {object} map[string]string
// @Router      /health [get]
func (h *Handlers) Health(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"status": "ok"})
}
