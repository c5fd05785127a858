package adapter

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/arung-agamani/denpa-radio/config"
	"github.com/arung-agamani/denpa-radio/internal/broadcastclock"
	"github.com/arung-agamani/denpa-radio/internal/catalog"
)

// nowPlayingTicker owns the one-second-granularity push schedule described
// as `(delay+1) % 60 * * * * *`: a once-per-minute tick offset just past the
// configured network delay, so the catalog's current-program lookup has
// already settled by the time the tick fires. It runs only while a live
// StreamSession is active; timefree sessions push exactly once and never
// start it.
type nowPlayingTicker struct {
	store *catalog.Store
	cfg   *config.Config
	push  NowPlayingPushFunc

	cron *cron.Cron

	mu      sync.Mutex
	entryID cron.EntryID
	active  bool
	session *tickSession
}

type tickSession struct {
	stationID  string
	lastProgID string
}

func newNowPlayingTicker(store *catalog.Store, cfg *config.Config, push NowPlayingPushFunc) *nowPlayingTicker {
	return &nowPlayingTicker{
		store: store,
		cfg:   cfg,
		push:  push,
		cron:  cron.New(cron.WithSeconds()),
	}
}

// start begins (or restarts) the push schedule for a new session. Live mode
// gates a recurring tick; timefree mode pushes once and never starts the
// ticker.
func (t *nowPlayingTicker) start(stationID, mode string, ft, to time.Time, seek int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()

	if mode == "timefree" {
		t.pushTimefreeOnce(stationID, ft, to, seek)
		return
	}

	t.session = &tickSession{stationID: stationID}

	second := (t.cfg.DelaySec + 1) % 60
	spec := fmt.Sprintf("%d * * * * *", second)
	id, err := t.cron.AddFunc(spec, t.tick)
	if err != nil {
		slog.Error("adapter: could not schedule now-playing ticker", "error", err)
		return
	}
	t.entryID = id
	if !t.active {
		t.cron.Start()
		t.active = true
	}
}

// stop cancels any running ticker entry. Idempotent.
func (t *nowPlayingTicker) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *nowPlayingTicker) stopLocked() {
	if t.session != nil {
		t.cron.Remove(t.entryID)
		t.session = nil
	}
}

func (t *nowPlayingTicker) tick() {
	t.mu.Lock()
	session := t.session
	t.mu.Unlock()
	if session == nil {
		return
	}

	now := broadcastclock.BroadcastNow(t.cfg.DelaySec)
	prog := t.store.FindCurrent(session.stationID, now)
	if prog == nil || prog.ProgID == session.lastProgID {
		return
	}

	t.mu.Lock()
	if t.session == session {
		session.lastProgID = prog.ProgID
	}
	t.mu.Unlock()

	st := t.store.Station(session.stationID)
	title, artist := "", ""
	if !prog.IsGapFiller() {
		title, artist = prog.Title, prog.Pfm
	}

	t.push(NowPlaying{
		Title:       title,
		Artist:      artist,
		AlbumArt:    albumArtFor(t.cfg, st, prog),
		DurationSec: int(prog.To.Sub(prog.Ft).Seconds()),
		SeekMs:      now.Sub(prog.Ft).Milliseconds(),
	})
}

func (t *nowPlayingTicker) pushTimefreeOnce(stationID string, ft, to time.Time, seek int) {
	st := t.store.Station(stationID)
	prog := t.store.FindAt(stationID, ft)

	title, artist := "", ""
	if prog != nil && !prog.IsGapFiller() {
		title, artist = prog.Title, prog.Pfm
	}

	t.push(NowPlaying{
		Title:       title,
		Artist:      artist,
		AlbumArt:    albumArtFor(t.cfg, st, prog),
		DurationSec: int(to.Sub(ft).Seconds()),
		SeekMs:      int64(seek) * 1000,
	})
}

// albumArtFor duplicates Adapter.albumArt's policy for the ticker, which
// runs independent of any single Adapter method receiver.
func albumArtFor(cfg *config.Config, st *catalog.Station, prog *catalog.Program) string {
	if st == nil {
		return ""
	}
	switch cfg.AAType {
	case config.AlbumArtBanner:
		return st.BannerURL
	case config.AlbumArtLogo:
		return st.LogoURL
	default:
		if prog != nil && prog.Img != "" {
			return prog.Img
		}
		return st.LogoURL
	}
}
