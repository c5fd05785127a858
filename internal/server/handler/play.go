package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/arung-agamani/denpa-radio/internal/catalog"
	"github.com/arung-agamani/denpa-radio/internal/relay"
	"github.com/arung-agamani/denpa-radio/internal/relayerr"
	"github.com/arung-agamani/denpa-radio/internal/server/service"
	"github.com/gin-gonic/gin"
)

// PlayHandlers serves the audio relay route.
type PlayHandlers struct {
	cfg      relay.Config
	auth     relay.AuthClient
	store    *catalog.Store
	fetcher  relay.StationFetcher
	sessions *service.SessionRegistry
	adapter  service.NowPlayingGate
}

func NewPlayHandlers(cfg relay.Config, auth relay.AuthClient, store *catalog.Store, fetcher relay.StationFetcher, sessions *service.SessionRegistry, adapter service.NowPlayingGate) *PlayHandlers {
	return &PlayHandlers{cfg: cfg, auth: auth, store: store, fetcher: fetcher, sessions: sessions, adapter: adapter}
}

// Play handles GET /radiko/play/{stationId}?ft=&to=&seek=. It blocks for
// the lifetime of the stream; the gin handler goroutine IS the streaming
// goroutine, so cancellation on client disconnect is carried by the
// request's own context.
func (h *PlayHandlers) Play(c *gin.Context) {
	params := service.PlayParams{
		StationID: c.Param("stationId"),
		Ft:        c.Query("ft"),
		To:        c.Query("to"),
		Seek:      c.Query("seek"),
	}

	req, err := service.BuildPlayRequest(h.store, params)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, relayerr.ErrInvalidRequest) || errors.Is(err, relayerr.ErrInvalidInterval) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"status": "error", "error": err.Error()})
		return
	}

	session, err := relay.New(h.cfg, h.auth, h.store, h.fetcher, req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, relayerr.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"status": "error", "error": err.Error()})
		return
	}

	if h.adapter != nil {
		effective := session.EffectiveRequest()
		mode := "live"
		if effective.Mode == relay.ModeTimefree {
			mode = "timefree"
		}
		h.adapter.StartNowPlayingTicker(effective.StationID, mode, effective.Ft, effective.To, effective.Seek)
		defer h.adapter.StopTicker()
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	id := h.sessions.Add(cancel)
	defer h.sessions.Remove(id)

	if err := session.Run(ctx, c.Writer); err != nil {
		slog.Warn("relay: session ended with error", "stationId", req.StationID, "error", err)
		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "stream setup failed"})
		}
	}
}
