// Package adapter is the narrow, explicit surface between the relay core
// and its host-player collaborator. It is the only package that understands
// browse lists, queue items, and toast messages; everything else in the
// relay talks in stations, programs, and sessions.
package adapter

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/arung-agamani/denpa-radio/config"
	"github.com/arung-agamani/denpa-radio/internal/broadcastclock"
	"github.com/arung-agamani/denpa-radio/internal/catalog"
	"github.com/arung-agamani/denpa-radio/internal/relayerr"
)

// ToastLevel selects the severity of a transient toast message.
type ToastLevel string

const (
	ToastInfo    ToastLevel = "info"
	ToastSuccess ToastLevel = "success"
	ToastWarn    ToastLevel = "warn"
	ToastError   ToastLevel = "error"
)

// ToastFunc emits a transient message toward the collaborator's UI.
type ToastFunc func(level ToastLevel, title, body string)

// NowPlaying is the payload pushed to the collaborator whenever the
// currently-playing program changes.
type NowPlaying struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	AlbumArt    string `json:"albumart"`
	DurationSec int    `json:"durationSec"`
	SeekMs      int64  `json:"seekMs"`
}

// NowPlayingPushFunc delivers an updated NowPlaying state to the
// collaborator.
type NowPlayingPushFunc func(NowPlaying)

// Strings is an i18n lookup table keyed by message id, supplied by the
// collaborator at construction time.
type Strings map[string]string

// BrowseItem is one navigable entry in a browse list.
type BrowseItem struct {
	URI       string `json:"uri"`
	StationID string `json:"stationId"`
	Label     string `json:"label"`
	Subtitle  string `json:"subtitle,omitempty"`
	AlbumArt  string `json:"albumart,omitempty"`
}

// BrowseGroup is one region's worth of browse items.
type BrowseGroup struct {
	Region string       `json:"region"`
	Items  []BrowseItem `json:"items"`
}

// ExplodeResult is the concrete play target an opaque browse URI resolves
// to, plus a label bundle the collaborator can render without a second
// catalog round-trip.
type ExplodeResult struct {
	StationID string
	Mode      string // "live" or "timefree"
	Ft        string // 14-digit, empty in live mode
	To        string
	Seek      int
	Label     string
	Subtitle  string
}

// Adapter binds the relay's CatalogStore to the host-player vocabulary. It
// holds the inbound surface (config, i18n, toast, now-playing push) the
// core consumes, and implements the outbound browse/explode/ticker surface
// the collaborator calls.
type Adapter struct {
	store   *catalog.Store
	cfg     *config.Config
	strings Strings
	toast   ToastFunc
	push    NowPlayingPushFunc

	ticker *nowPlayingTicker
}

// New builds an Adapter. toast and push may be nil, in which case the
// corresponding calls are no-ops.
func New(store *catalog.Store, cfg *config.Config, strings Strings, toast ToastFunc, push NowPlayingPushFunc) *Adapter {
	if toast == nil {
		toast = func(ToastLevel, string, string) {}
	}
	if push == nil {
		push = func(NowPlaying) {}
	}
	a := &Adapter{store: store, cfg: cfg, strings: strings, toast: toast, push: push}
	a.ticker = newNowPlayingTicker(store, cfg, push)
	return a
}

// Config exposes the relay's configuration, as the collaborator supplied it
// at startup.
func (a *Adapter) Config() *config.Config {
	return a.cfg
}

// String resolves an i18n message key. An unknown key returns the key
// itself, so a missing translation is visible rather than silently blank.
func (a *Adapter) String(key string) string {
	if v, ok := a.strings[key]; ok {
		return v
	}
	return key
}

// Toast emits a transient message toward the collaborator.
func (a *Adapter) Toast(level ToastLevel, title, body string) {
	a.toast(level, title, body)
}

// albumArt applies the configured album-art policy. prog may be nil (no
// current program, or a timefree browse entry with nothing scheduled).
func (a *Adapter) albumArt(st *catalog.Station, prog *catalog.Program) string {
	if st == nil {
		return ""
	}
	switch a.cfg.AAType {
	case config.AlbumArtBanner:
		return st.BannerURL
	case config.AlbumArtLogo:
		return st.LogoURL
	default: // program-then-logo
		if prog != nil && prog.Img != "" {
			return prog.Img
		}
		return st.LogoURL
	}
}

// BrowseLive lists every known station, grouped by region, with the
// currently-on-air program (if any) as the subtitle.
func (a *Adapter) BrowseLive() []BrowseGroup {
	now := broadcastclock.BroadcastNow(a.cfg.DelaySec)
	return a.browseStations(func(st *catalog.Station) BrowseItem {
		prog := a.store.FindCurrent(st.StationID, now)
		item := BrowseItem{
			URI:       fmt.Sprintf("radiko://live/%s", st.StationID),
			StationID: st.StationID,
			Label:     st.DisplayName,
			AlbumArt:  a.albumArt(st, prog),
		}
		if prog != nil && !prog.IsGapFiller() {
			item.Subtitle = prog.Title
		}
		return item
	})
}

// BrowseTimefree lists every known station, grouped by region, as the entry
// point to BrowseStationDay.
func (a *Adapter) BrowseTimefree() []BrowseGroup {
	return a.browseStations(func(st *catalog.Station) BrowseItem {
		return BrowseItem{
			URI:       fmt.Sprintf("radiko://timefree/%s", st.StationID),
			StationID: st.StationID,
			Label:     st.DisplayName,
			Subtitle:  a.String("browse.pick_day"),
			AlbumArt:  a.albumArt(st, nil),
		}
	})
}

func (a *Adapter) browseStations(build func(*catalog.Station) BrowseItem) []BrowseGroup {
	byRegion := make(map[string][]BrowseItem)
	for _, st := range a.store.Stations() {
		byRegion[st.RegionName] = append(byRegion[st.RegionName], build(st))
	}

	groups := make([]BrowseGroup, 0, len(byRegion))
	for region, items := range byRegion {
		sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
		groups = append(groups, BrowseGroup{Region: region, Items: items})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Region < groups[j].Region })
	return groups
}

// BrowseStationDay lists every real program (gap fillers excluded) for one
// station's broadcast day, ascending by start time.
func (a *Adapter) BrowseStationDay(stationID string, broadcastDate time.Time) ([]BrowseItem, error) {
	st := a.store.Station(stationID)
	if st == nil {
		return nil, relayerr.ErrNotFound
	}

	progs := a.store.ListForDay(stationID, broadcastDate)
	items := make([]BrowseItem, 0, len(progs))
	for _, p := range progs {
		if p.IsGapFiller() {
			continue
		}
		items = append(items, BrowseItem{
			URI:       fmt.Sprintf("radiko://timefree/%s/%s/%s", stationID, broadcastclock.Format14(p.Ft), broadcastclock.Format14(p.To)),
			StationID: stationID,
			Label:     p.Title,
			Subtitle:  p.Pfm,
			AlbumArt:  a.albumArt(st, p),
		})
	}
	return items, nil
}

var (
	liveURIRe     = regexp.MustCompile(`^radiko://live/([^/?]+)$`)
	timefreeURIRe = regexp.MustCompile(`^radiko://timefree/([^/?]+)/(\d{1,14})/(\d{1,14})(?:\?seek=(\d+))?$`)
)

// ExplodeURI translates an opaque browse URI produced by BrowseLive,
// BrowseTimefree, or BrowseStationDay back into a concrete play target.
func (a *Adapter) ExplodeURI(uri string) (ExplodeResult, error) {
	if m := liveURIRe.FindStringSubmatch(uri); m != nil {
		st := a.store.Station(m[1])
		if st == nil {
			return ExplodeResult{}, relayerr.ErrNotFound
		}
		return ExplodeResult{StationID: m[1], Mode: "live", Label: st.DisplayName}, nil
	}

	if m := timefreeURIRe.FindStringSubmatch(uri); m != nil {
		st := a.store.Station(m[1])
		if st == nil {
			return ExplodeResult{}, relayerr.ErrNotFound
		}
		ft, err := broadcastclock.Parse(m[2])
		if err != nil {
			return ExplodeResult{}, err
		}
		to, err := broadcastclock.Parse(m[3])
		if err != nil {
			return ExplodeResult{}, err
		}
		if err := broadcastclock.ValidateInterval(ft, to); err != nil {
			return ExplodeResult{}, err
		}

		seek := 0
		if m[4] != "" {
			seek, _ = strconv.Atoi(m[4])
		}

		label, subtitle := st.DisplayName, ""
		if prog := a.store.FindAt(m[1], ft); prog != nil {
			label, subtitle = prog.Title, prog.Pfm
		}

		return ExplodeResult{
			StationID: m[1],
			Mode:      "timefree",
			Ft:        broadcastclock.Format14(ft),
			To:        broadcastclock.Format14(to),
			Seek:      seek,
			Label:     label,
			Subtitle:  subtitle,
		}, nil
	}

	return ExplodeResult{}, fmt.Errorf("%w: unrecognized browse uri %q", relayerr.ErrInvalidRequest, uri)
}

// StartNowPlayingTicker gates the once-per-minute now-playing push for a
// live session, or fires the single timefree push, per mode.
func (a *Adapter) StartNowPlayingTicker(stationID string, mode string, ft, to time.Time, seek int) {
	a.ticker.start(stationID, mode, ft, to, seek)
}

// StopTicker stops any now-playing push in progress for the caller's
// session. Safe to call even if no ticker is running.
func (a *Adapter) StopTicker() {
	a.ticker.stop()
}
