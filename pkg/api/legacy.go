package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"mutegate/pkg/voice"

	"github.com/gin-gonic/gin"
)

// Legacy command tags carried in the "req" header.
const (
	legacyConnect   = "connect"
	legacySync      = "sync"
	legacyKeepAlive = "keep_alive"
	legacyMute      = "mute"
)

// handleLegacy demultiplexes the single-endpoint protocol of the old
// client generation. The whole command envelope lives in request headers:
// "req" names the command, "params" carries a JSON-encoded object. That
// constraint is preserved exactly; the body is ignored.
func (h *Handler) handleLegacy(c *gin.Context) {
	h.log.WarnWith("hitting legacy backend")

	req := c.GetHeader("req")
	if req == "" {
		h.log.DebugWith("legacy request without command tag")
		c.Status(http.StatusBadRequest)
		return
	}

	params := []byte(c.GetHeader("params"))
	if len(params) > 0 && !json.Valid(params) {
		h.log.DebugWith("legacy request with malformed params", "req", req)
		c.Status(http.StatusInternalServerError)
		return
	}

	h.log.DebugWith("legacy request", "req", req)

	switch req {
	case legacyConnect:
		h.legacyConnect(c, params)
	case legacySync:
		c.JSON(http.StatusOK, legacySyncResponse{
			Success:     true,
			Version:     h.version,
			DebugMode:   h.log.DebugEnabled(),
			CommunityID: h.settings.CommunityID,
		})
	case legacyKeepAlive:
		c.JSON(http.StatusOK, successResponse{Success: true})
	case legacyMute:
		h.legacyMute(c, params)
	default:
		h.log.DebugWith("unrecognized legacy command", "req", req)
		c.Status(http.StatusBadRequest)
	}
}

// legacyConnect resolves a lowercased player tag to a member.
func (h *Handler) legacyConnect(c *gin.Context, params []byte) {
	var p struct {
		Tag *string `json:"tag"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
	}
	if p.Tag == nil || *p.Tag == "" {
		h.log.ErrorWith("legacy connect without tag")
		c.Status(http.StatusBadRequest)
		return
	}

	tag := strings.ToLower(*p.Tag)

	candidates, err := h.provider.Members(c.Request.Context())
	if err != nil {
		h.log.ErrorWithErr("failed to list members", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	found, ok := voice.FindMember(candidates, tag)
	if !ok {
		h.log.ErrorWith("legacy connect matched nobody", "tag", tag)
		c.JSON(http.StatusNotFound, notFoundResponse{Answer: 0})
		return
	}

	h.log.InfoWith("legacy connect", "display_name", found.DisplayName, "id", found.ID)
	c.JSON(http.StatusOK, legacyConnectResponse{
		Tag: found.DisplayName,
		ID:  found.ID,
	})
}

// legacyMute runs the single-item path through the dispatcher's mute mode.
// id must be a string and mute strictly boolean; the legacy protocol never
// applied the numeric-string rule here and that looseness is kept.
func (h *Handler) legacyMute(c *gin.Context, params []byte) {
	var p struct {
		ID   *string `json:"id"`
		Mute *bool   `json:"mute"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			// Wrongly-typed fields count as missing params, not a parse
			// failure of the envelope.
			p.ID = nil
			p.Mute = nil
		}
	}
	if p.ID == nil || p.Mute == nil {
		h.log.ErrorWith("legacy mute with missing params")
		c.JSON(http.StatusBadRequest, legacyErrorResponse{
			Success:  false,
			ErrorID:  errIDInvalidParams,
			ErrorMsg: "ID or Mute value missing",
		})
		return
	}

	command := voice.MuteCommand{ID: *p.ID, Status: *p.Mute}
	result := h.dispatcher.Apply(c.Request.Context(), []voice.MuteCommand{command}, voice.ModeMute)
	if err := result.FirstError(); err != nil {
		c.JSON(http.StatusInternalServerError, legacyErrorResponse{
			Success:  false,
			ErrorID:  errIDProvider,
			ErrorMsg: err.Error(),
		})
		return
	}

	h.log.InfoWith("legacy mute applied", "id", command.ID, "mute", command.Status)
	c.JSON(http.StatusOK, successResponse{Success: true})
}
