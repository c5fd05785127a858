// Package server binds the relay's components to a local HTTP interface
// and a daily catalog-refresh schedule.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/arung-agamani/denpa-radio/config"
	"github.com/arung-agamani/denpa-radio/internal/broadcastclock"
	"github.com/arung-agamani/denpa-radio/internal/catalog"
	"github.com/arung-agamani/denpa-radio/internal/catalogfeed"
	"github.com/arung-agamani/denpa-radio/internal/relay"
	"github.com/arung-agamani/denpa-radio/internal/relayerr"
	"github.com/arung-agamani/denpa-radio/internal/server/handler"
	"github.com/arung-agamani/denpa-radio/internal/server/service"
	"github.com/arung-agamani/denpa-radio/internal/upstreamauth"
)

// dailyRefreshSpec matches the upstream's own broadcast-day rollover at
// 05:00 JST, giving the catalog a minute of slack to pick up the new day.
const dailyRefreshSpec = "59 4 * * *"

// Server binds CatalogStore, AuthClient, and CatalogFetcher to a gin
// engine and a daily cron refresh.
type Server struct {
	cfg     *config.Config
	auth    *upstreamauth.Client
	store   *catalog.Store
	fetcher *catalogfeed.Fetcher

	sessions *service.SessionRegistry
	engine   *gin.Engine
	http     *http.Server
	cron     *cron.Cron
}

// securityHeaders mirrors the standard hardening headers applied to every
// response: mitigations for clickjacking, MIME-sniffing, XSS reflection,
// and information leakage.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		c.Header("Content-Security-Policy",
			"default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; media-src 'self'; connect-src 'self'; font-src 'self'")
		c.Next()
	}
}

// New wires the catalog, auth, and fetcher components into a gin engine
// and an idle cron scheduler. nowPlaying may be nil, in which case the play
// route never gates a now-playing ticker. Call Start to bind and begin
// serving.
func New(cfg *config.Config, auth *upstreamauth.Client, store *catalog.Store, fetcher *catalogfeed.Fetcher, nowPlaying service.NowPlayingGate) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), securityHeaders())

	sessions := service.NewSessionRegistry()
	catalogSvc := service.NewCatalogService(store)
	catalogHandlers := handler.NewCatalogHandlers(catalogSvc)

	relayCfg := relay.Config{
		FfmpegPath:          cfg.FfmpegPath,
		TimeshiftPastDays:   cfg.TimeshiftPastDays,
		TimeshiftFutureDays: cfg.TimeshiftFutureDays,
	}
	playHandlers := handler.NewPlayHandlers(relayCfg, auth, store, fetcher, sessions, nowPlaying)

	engine.GET("/health", catalogHandlers.Health)
	engine.GET("/radiko/play/:stationId", playHandlers.Play)
	engine.GET("/api/radiko/stations", catalogHandlers.Stations)
	engine.GET("/api/radiko/stations/with-program", catalogHandlers.StationsWithProgram)
	engine.GET("/api/radiko/stations/:stationId/programs", catalogHandlers.ProgramsForDay)

	s := &Server{
		cfg:      cfg,
		auth:     auth,
		store:    store,
		fetcher:  fetcher,
		sessions: sessions,
		engine:   engine,
		cron:     cron.New(),
	}

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // streaming responses have no deadline
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// areaIDs is the set of areas the catalog maintains: every user-enabled
// area plus whatever area the auth handshake resolved.
func (s *Server) areaIDs() []string {
	seen := make(map[string]bool)
	for area := range s.cfg.EnabledAreas {
		seen[area] = true
	}
	if resolved := s.auth.Token().AreaID; resolved != "" {
		seen[resolved] = true
	}
	ids := make([]string, 0, len(seen))
	for area := range seen {
		ids = append(ids, area)
	}
	return ids
}

// Start binds the configured port, runs catalog bootstrap, registers the
// daily refresh task, and serves until ctx is cancelled. A bind failure is
// surfaced as ErrPortInUse.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("%w: %s", relayerr.ErrPortInUse, s.http.Addr)
		}
		return err
	}

	if err := s.fetcher.Bootstrap(ctx, s.areaIDs()); err != nil {
		slog.Warn("server: catalog bootstrap failed, starting anyway", "error", err)
	}

	if _, err := s.cron.AddFunc(dailyRefreshSpec, s.runDailyRefresh); err != nil {
		return fmt.Errorf("register daily refresh task: %w", err)
	}
	s.cron.Start()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server: listening", "addr", s.http.Addr)
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops the cron scheduler, cancels every active stream session,
// closes the HTTP listener, and clears the catalog — in that order, per
// the shutdown contract.
func (s *Server) Shutdown(ctx context.Context) error {
	cronCtx := s.cron.Stop()
	<-cronCtx.Done()

	s.sessions.CancelAll()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := s.http.Shutdown(shutdownCtx)

	s.store.Clear()

	return err
}

func (s *Server) runDailyRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	today := broadcastclock.BroadcastDate(broadcastclock.Now())
	if err := s.fetcher.RefreshDaily(ctx, s.areaIDs(), today); err != nil {
		slog.Warn("server: daily catalog refresh failed", "error", err)
	}

	purgeBefore := today.AddDate(0, 0, -s.cfg.TimeshiftPastDays)
	removed := s.store.PurgeBefore(purgeBefore)
	slog.Info("server: daily refresh complete", "purged", removed)
}
