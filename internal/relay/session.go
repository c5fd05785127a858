// Package relay resolves a playable URL against the upstream, spawns an
// external audio transcoder in its own process group, and pipes the
// transcoder's stdout to an HTTP response writer for exactly one listener.
package relay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/arung-agamani/denpa-radio/internal/broadcastclock"
	"github.com/arung-agamani/denpa-radio/internal/catalog"
	"github.com/arung-agamani/denpa-radio/internal/relayerr"
	"github.com/arung-agamani/denpa-radio/internal/upstreamauth"
)

const (
	maxRetries      = 2
	killGracePeriod = time.Second
	defaultFfmpeg   = "ffmpeg"
)

// Mode selects between a live broadcast and a time-shifted (time-free)
// replay of a past program.
type Mode int

const (
	ModeLive Mode = iota
	ModeTimefree
)

type state int

const (
	stateResolving state = iota
	stateSpawning
	stateStreaming
	stateClosing
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateResolving:
		return "resolving"
	case stateSpawning:
		return "spawning"
	case stateStreaming:
		return "streaming"
	case stateClosing:
		return "closing"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// AuthClient is the subset of upstreamauth.Client a session depends on.
type AuthClient interface {
	Token() upstreamauth.Snapshot
	Refresh(ctx context.Context) (upstreamauth.Snapshot, error)
}

// Catalog is the subset of catalog.Store a session consults before a
// time-shift resolution, to detect an un-fetched broadcast day.
type Catalog interface {
	FindAt(stationID string, t time.Time) *catalog.Program
}

// StationFetcher lazily fetches a single station's single-day program feed.
// Implemented by catalogfeed.Fetcher.
type StationFetcher interface {
	FetchStation(ctx context.Context, stationID string, broadcastDate time.Time) error
}

// Request describes one playback intent.
type Request struct {
	StationID string
	Mode      Mode
	Ft        time.Time // time-shift only
	To        time.Time // time-shift only
	Seek      int        // seconds, time-shift only; advances Ft before resolution
}

// Config carries the transcoder binary path and the time-shift window
// policy.
type Config struct {
	FfmpegPath          string
	TimeshiftPastDays   int
	TimeshiftFutureDays int
}

func (c Config) ffmpegPath() string {
	if c.FfmpegPath == "" {
		return defaultFfmpeg
	}
	return c.FfmpegPath
}

// Session realizes one HTTP audio-stream request end to end: playlist
// resolution, transcoder spawn, piping, and process-group teardown. One
// Session serves exactly one listener and is not reused.
type Session struct {
	cfg     Config
	auth    AuthClient
	catalog Catalog
	fetcher StationFetcher
	http    *http.Client
	req     Request

	mu    sync.Mutex
	state state
	cmd   *exec.Cmd
}

// New validates the requested time-shift window (a no-op for live requests)
// and constructs a Session ready for Run. Resolution of "on-air" intervals
// to live mode happens here so handlers and logs see the effective mode
// before any network call is made. cat and fetcher may be nil, in which
// case a time-shift resolution never attempts a lazy catalog fetch.
func New(cfg Config, auth AuthClient, cat Catalog, fetcher StationFetcher, req Request) (*Session, error) {
	if req.Mode == ModeTimefree {
		effective, err := resolveTimeshiftMode(cfg, req, broadcastclock.Now())
		if err != nil {
			return nil, err
		}
		req.Mode = effective
	}
	return &Session{
		cfg:     cfg,
		auth:    auth,
		catalog: cat,
		fetcher: fetcher,
		http:    &http.Client{Timeout: 10 * time.Second},
		req:     req,
		state:   stateResolving,
	}, nil
}

// EffectiveRequest returns the request this Session was constructed with,
// after time-shift-window resolution — callers that need the post-New mode
// (e.g. to gate a now-playing ticker) should read this rather than the
// Request they originally passed to New.
func (s *Session) EffectiveRequest() Request {
	return s.req
}

// resolveTimeshiftMode implements the window rule: an interval entirely in
// the future is refused outright; an interval straddling or following "now"
// is on-air and is served as live instead of time-shift; an interval that
// ends in the past but starts further back than the configured retention
// window is refused as too old; anything else is a genuine time-shift
// replay.
func resolveTimeshiftMode(cfg Config, req Request, now time.Time) (Mode, error) {
	futureLimit := now.AddDate(0, 0, cfg.TimeshiftFutureDays)
	if req.Ft.After(futureLimit) {
		return req.Mode, fmt.Errorf("%w: time-shift interval starts in the future", relayerr.ErrInvalidRequest)
	}
	if req.To.After(now) {
		return ModeLive, nil
	}
	pastLimit := now.AddDate(0, 0, -cfg.TimeshiftPastDays)
	if req.Ft.Before(pastLimit) {
		return req.Mode, fmt.Errorf("%w: time-shift interval is more than %d days old", relayerr.ErrInvalidRequest, cfg.TimeshiftPastDays)
	}
	return ModeTimefree, nil
}

// Run drives the session through Resolving, Spawning, and Streaming, and
// blocks until the stream ends (client disconnect via ctx, child exit, or a
// writer error), at which point it transitions through Closing to Closed.
// Run writes response headers and the audio body directly to w; callers
// must not write to w themselves. A non-nil error before the first byte is
// written means no headers were sent and the caller should respond with its
// own 5xx.
func (s *Session) Run(ctx context.Context, w http.ResponseWriter) error {
	playlistURL, err := s.resolvePlaylist(ctx)
	if err != nil {
		return err
	}

	s.setState(stateSpawning)
	proc, err := s.spawn(playlistURL)
	if err != nil {
		return fmt.Errorf("%w: %v", relayerr.ErrSpawn, err)
	}
	s.mu.Lock()
	s.cmd = proc.cmd
	s.mu.Unlock()

	s.setState(stateStreaming)
	w.Header().Set("Content-Type", "audio/aac")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	streamErr := s.pipe(ctx, proc, w)

	s.setState(stateClosing)
	proc.stop()
	s.setState(stateClosed)

	return streamErr
}

// resolvePlaylist requests the top-level playlist (live or time-shift,
// per s.req.Mode) and extracts the first https:// line ending in .m3u8. It
// retries after a token refresh, up to maxRetries attempts total.
func (s *Session) resolvePlaylist(ctx context.Context) (string, error) {
	if s.req.Mode == ModeTimefree {
		s.ensureCatalogFetched(ctx)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		url, err := s.fetchTopLevelPlaylist(ctx)
		if err == nil {
			return url, nil
		}
		lastErr = err
		if attempt < maxRetries-1 {
			if _, rerr := s.auth.Refresh(ctx); rerr != nil {
				slog.Warn("relay: token refresh before retry failed", "stationId", s.req.StationID, "error", rerr)
			}
		}
	}
	return "", fmt.Errorf("%w: %v", relayerr.ErrResolvePlaylist, lastErr)
}

// ensureCatalogFetched triggers a lazy single-station, single-day fetch when
// the catalog has no program covering s.req.Ft yet — the common case for a
// time-shift request against a broadcast day CatalogFetcher hasn't pulled.
// A fetch failure is logged and swallowed; playlist resolution proceeds
// regardless since the upstream playlist endpoint doesn't itself depend on
// the catalog being populated.
func (s *Session) ensureCatalogFetched(ctx context.Context) {
	if s.catalog == nil || s.fetcher == nil {
		return
	}
	if s.catalog.FindAt(s.req.StationID, s.req.Ft) != nil {
		return
	}
	broadcastDate := broadcastclock.BroadcastDate(s.req.Ft)
	if err := s.fetcher.FetchStation(ctx, s.req.StationID, broadcastDate); err != nil {
		slog.Warn("relay: lazy station fetch failed", "stationId", s.req.StationID, "error", err)
	}
}

func (s *Session) fetchTopLevelPlaylist(ctx context.Context) (string, error) {
	topURL := s.topLevelURL()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, topURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Radiko-AuthToken", s.auth.Token().Token)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "https://") && strings.HasSuffix(line, ".m3u8") {
			return line, nil
		}
	}
	return "", fmt.Errorf("no playable url in top-level playlist")
}

func (s *Session) topLevelURL() string {
	if s.req.Mode == ModeLive {
		return upstreamauth.PlayLiveURL(s.req.StationID)
	}
	ft := s.req.Ft
	if s.req.Seek > 0 {
		ft = ft.Add(time.Duration(s.req.Seek) * time.Second)
	}
	return upstreamauth.PlayTimefreeURL(s.req.StationID, broadcastclock.Format14(ft), broadcastclock.Format14(s.req.To))
}

func (s *Session) pipe(ctx context.Context, proc *childProcess, w io.Writer) error {
	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(w, proc.stdout)
		done <- err
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-done:
		if err != nil {
			return fmt.Errorf("stream copy error: %w", err)
		}
		return nil
	}
}

func (s *Session) setState(st state) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
