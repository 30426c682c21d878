// ===============================
// FILE: internal/handlers/api/v1/feeds/feeds_controller.go
// ===============================

package feeds

import (
	"net/http"
	"strconv"
	"time"

	"wavehub/internal/contextutils"
	"wavehub/internal/models"
	"wavehub/internal/response"
	"wavehub/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// FeedController serves feed pages and the live websocket stream.
type FeedController struct {
	feedService services.FeedService
	writer      *response.Writer
	logger      *zap.Logger
	upgrader    websocket.Upgrader
}

// NewFeedController creates a feed controller.
func NewFeedController(feedService services.FeedService, writer *response.Writer, logger *zap.Logger) *FeedController {
	return &FeedController{
		feedService: feedService,
		writer:      writer,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The API is token-authenticated, not cookie-authenticated, so
			// cross-origin upgrades carry no ambient credentials.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes mounts the feed routes.
func (c *FeedController) RegisterRoutes(r chi.Router) {
	r.Route("/feeds", func(r chi.Router) {
		r.Get("/live", c.Live)
		r.Get("/{feed}", c.GetFeed)
	})
}

// GetFeed serves one page of the named feed.
func (c *FeedController) GetFeed(w http.ResponseWriter, r *http.Request) {
	kind := models.FeedKind(chi.URLParam(r, "feed"))

	params := models.PaginationParams{Cursor: r.URL.Query().Get("cursor")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.writer.ValidationError(w, r, "invalid limit")
			return
		}
		params.Limit = limit
	}

	page, err := c.feedService.GetFeed(r.Context(), &services.FeedRequest{
		Kind:       kind,
		Pagination: params,
	}, contextutils.GetViewerID(r.Context()))
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}
	c.writer.OK(w, r, page)
}

// Live upgrades to a websocket and streams feed frames: one snapshot, then
// diffs in server write order per post, until the client goes away.
func (c *FeedController) Live(w http.ResponseWriter, r *http.Request) {
	kind := models.FeedKind(r.URL.Query().Get("feed"))
	if kind == "" {
		kind = models.FeedRecent
	}

	sub, err := c.feedService.Subscribe(r.Context(), kind, contextutils.GetViewerID(r.Context()))
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Cancel()
		c.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	go c.readLoop(conn, sub)
	c.writeLoop(conn, sub)
}

// readLoop drains client frames (only control frames are expected) and
// cancels the subscription when the connection dies.
func (c *FeedController) readLoop(conn *websocket.Conn, sub services.FeedSubscription) {
	defer sub.Cancel()
	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop pumps subscription frames to the client. The Updates channel
// closing means cancellation or a drop for falling behind; either way the
// connection closes.
func (c *FeedController) writeLoop(conn *websocket.Conn, sub services.FeedSubscription) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		sub.Cancel()
		_ = conn.Close()
	}()

	for {
		select {
		case update, ok := <-sub.Updates():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription closed"))
				return
			}
			if err := conn.WriteJSON(update); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
