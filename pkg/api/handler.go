package api

import (
	"io"
	"net/http"

	"mutegate/pkg/auth"
	"mutegate/pkg/config"
	"mutegate/pkg/logger"
	"mutegate/pkg/voice"

	"github.com/gin-gonic/gin"
)

// Handler holds the dependencies the route handlers need. Everything here
// is immutable after startup; there is no shared mutable request state.
type Handler struct {
	settings   *config.Settings
	provider   voice.Provider
	dispatcher *voice.Dispatcher
	log        *logger.Logger
	version    string
}

// NewHandler creates the handler set for the given settings and provider.
func NewHandler(settings *config.Settings, provider voice.Provider, log *logger.Logger, version string) *Handler {
	return &Handler{
		settings:   settings,
		provider:   provider,
		dispatcher: voice.NewDispatcher(provider, log),
		log:        log,
		version:    version,
	}
}

// NewRouter builds the gin engine. The legacy endpoint is registered only
// when the settings enable it; when disabled the route simply does not
// exist, which some deployments rely on.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(h.log))
	router.Use(BodyLimitMiddleware())
	router.Use(AuthMiddleware(auth.NewAuthorizer(h.settings.APIKey), h.log))

	router.GET("/id", h.handleMemberLookup)
	router.POST("/mute", h.handleMute)
	router.POST("/deafen", h.handleDeafen)

	if h.settings.LegacyEnabled {
		h.log.InfoWith("loading legacy routes")
		router.GET("/", h.handleLegacy)
	}

	return router
}

// handleMemberLookup resolves a display name or nickname fragment to one
// member id.
func (h *Handler) handleMemberLookup(c *gin.Context) {
	name, nameOK := c.GetQuery("name")
	nick, nickOK := c.GetQuery("nick")
	if !nameOK || !nickOK {
		h.log.ErrorWith("invalid request, parameters missing", "path", c.Request.URL.Path)
		c.Status(http.StatusBadRequest)
		return
	}

	candidates, err := h.provider.Members(c.Request.Context())
	if err != nil {
		h.log.ErrorWithErr("failed to list members", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	found, ok := voice.FindMember(candidates, name)
	if !ok {
		found, ok = voice.FindMember(candidates, nick)
	}
	if !ok {
		h.log.ErrorWith("no member matched", "name", name, "nick", nick)
		c.JSON(http.StatusNotFound, notFoundResponse{Answer: 0})
		return
	}

	var nickname *string
	if found.Nickname != "" {
		nickname = &found.Nickname
	}

	h.log.InfoWith("matched member", "display_name", found.DisplayName, "id", found.ID,
		"name", name, "nick", nick)
	c.JSON(http.StatusOK, memberResponse{
		Name: found.DisplayName,
		Nick: nickname,
		ID:   found.ID,
	})
}

func (h *Handler) handleMute(c *gin.Context) {
	h.handleVoiceBatch(c, voice.ModeMute)
}

func (h *Handler) handleDeafen(c *gin.Context) {
	h.handleVoiceBatch(c, voice.ModeDeafen)
}

// handleVoiceBatch runs the REST command family: validate the whole batch
// first, then dispatch. Validation failure means no provider call at all;
// dispatch failure means the batch was partially applied and the first
// failure is reported.
func (h *Handler) handleVoiceBatch(c *gin.Context, mode voice.Mode) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.WarnWith("failed to read request body", "error", err)
		c.Status(http.StatusBadRequest)
		return
	}

	commands, err := voice.ParseCommands(body)
	if err != nil {
		h.log.WarnWith("invalid request received", "error", err, "mode", string(mode))
		c.Status(http.StatusBadRequest)
		return
	}

	result := h.dispatcher.Apply(c.Request.Context(), commands, mode)
	if err := result.FirstError(); err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, successResponse{Success: true})
}
