// ===============================
// FILE: internal/handlers/api/v1/channels/channels_controller.go
// ===============================

package channels

import (
	"encoding/json"
	"net/http"
	"strconv"

	"wavehub/internal/contextutils"
	"wavehub/internal/response"
	"wavehub/internal/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ChannelController serves the channel catalog.
type ChannelController struct {
	channelService services.ChannelService
	writer         *response.Writer
	logger         *zap.Logger
}

// NewChannelController creates a channel controller.
func NewChannelController(channelService services.ChannelService, writer *response.Writer, logger *zap.Logger) *ChannelController {
	return &ChannelController{
		channelService: channelService,
		writer:         writer,
		logger:         logger,
	}
}

// RegisterRoutes mounts the channel routes.
func (c *ChannelController) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/channels", func(r chi.Router) {
		r.Get("/", c.ListChannels)
		r.Get("/{channelID}", c.GetChannel)
		r.With(requireAuth).Put("/{channelID}/subscription", c.SetSubscription)
	})
}

// ListChannels serves the catalog with the viewer's subscriptions flagged.
func (c *ChannelController) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := c.channelService.ListChannels(r.Context(), contextutils.GetViewerID(r.Context()))
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}
	c.writer.OK(w, r, channels)
}

// GetChannel serves one channel with its post references.
func (c *ChannelController) GetChannel(w http.ResponseWriter, r *http.Request) {
	channelID, err := pathID(r, "channelID")
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}

	channel, err := c.channelService.GetChannel(r.Context(), channelID, contextutils.GetViewerID(r.Context()))
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}
	c.writer.OK(w, r, channel)
}

type setSubscriptionRequest struct {
	Subscribed bool `json:"subscribed"`
}

// SetSubscription toggles the caller's membership to the requested state.
func (c *ChannelController) SetSubscription(w http.ResponseWriter, r *http.Request) {
	channelID, err := pathID(r, "channelID")
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}

	var body setSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		c.writer.ValidationError(w, r, "invalid JSON body")
		return
	}

	changed, err := c.channelService.SetSubscription(r.Context(), contextutils.GetIdentity(r.Context()), channelID, body.Subscribed)
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}
	c.writer.OK(w, r, map[string]bool{
		"subscribed": body.Subscribed,
		"changed":    changed,
	})
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, services.NewValidationError("invalid "+name, err)
	}
	return id, nil
}
