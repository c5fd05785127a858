package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arung-agamani/denpa-radio/config"
	"github.com/arung-agamani/denpa-radio/internal/broadcastclock"
	"github.com/arung-agamani/denpa-radio/internal/catalog"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := broadcastclock.Parse(s)
	require.NoError(t, err)
	return parsed
}

func newTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	store := catalog.New()
	store.UpsertStation(&catalog.Station{
		StationID:   "TBS",
		DisplayName: "TBS RADIO",
		RegionName:  "Kanto",
		LogoURL:     "https://example.com/tbs-logo.png",
		BannerURL:   "https://example.com/tbs-banner.png",
	})

	day := mustParse(t, "20250110")
	start, _ := broadcastclock.BroadcastDayBounds(day)
	store.UpsertProgram(&catalog.Program{
		ProgID:    "TBS-1",
		StationID: "TBS",
		Ft:        start,
		To:        start.Add(time.Hour),
		Title:     "Morning Show",
		Pfm:       "Someone",
		Img:       "https://example.com/morning.png",
	})
	return store
}

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	store := newTestStore(t)
	cfg := &config.Config{AAType: config.AlbumArtProgramThenLogo}
	return New(store, cfg, Strings{"browse.pick_day": "Pick a day"}, nil, nil)
}

func TestStringFallsBackToKey(t *testing.T) {
	a := newTestAdapter(t)
	assert.Equal(t, "Pick a day", a.String("browse.pick_day"))
	assert.Equal(t, "missing.key", a.String("missing.key"))
}

func TestBrowseLiveGroupsByRegionAndPicksAlbumArt(t *testing.T) {
	a := newTestAdapter(t)
	groups := a.BrowseLive()
	require.Len(t, groups, 1)
	assert.Equal(t, "Kanto", groups[0].Region)
	require.Len(t, groups[0].Items, 1)

	item := groups[0].Items[0]
	assert.Equal(t, "radiko://live/TBS", item.URI)
	assert.Equal(t, "TBS", item.StationID)
}

func TestAlbumArtPolicyBannerOnly(t *testing.T) {
	store := newTestStore(t)
	cfg := &config.Config{AAType: config.AlbumArtBanner}
	a := New(store, cfg, nil, nil, nil)
	groups := a.BrowseLive()
	assert.Equal(t, "https://example.com/tbs-banner.png", groups[0].Items[0].AlbumArt)
}

func TestBrowseStationDayUnknownStation(t *testing.T) {
	a := newTestAdapter(t)
	_, err := a.BrowseStationDay("NOPE", mustParse(t, "20250110"))
	require.Error(t, err)
}

func TestBrowseStationDayExcludesGapFillers(t *testing.T) {
	store := newTestStore(t)
	day := mustParse(t, "20250110")
	start, _ := broadcastclock.BroadcastDayBounds(day)
	store.UpsertProgram(&catalog.Program{
		ProgID:    "TBS-filler",
		StationID: "TBS",
		Ft:        start.Add(time.Hour),
		To:        start.Add(2 * time.Hour),
	})

	cfg := &config.Config{AAType: config.AlbumArtProgramThenLogo}
	a := New(store, cfg, nil, nil, nil)
	items, err := a.BrowseStationDay("TBS", day)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Morning Show", items[0].Label)
}

func TestExplodeURILive(t *testing.T) {
	a := newTestAdapter(t)
	result, err := a.ExplodeURI("radiko://live/TBS")
	require.NoError(t, err)
	assert.Equal(t, "live", result.Mode)
	assert.Equal(t, "TBS", result.StationID)
}

func TestExplodeURITimefree(t *testing.T) {
	a := newTestAdapter(t)
	day := mustParse(t, "20250110")
	start, _ := broadcastclock.BroadcastDayBounds(day)
	uri := "radiko://timefree/TBS/" + broadcastclock.Format14(start) + "/" + broadcastclock.Format14(start.Add(time.Hour)) + "?seek=120"

	result, err := a.ExplodeURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "timefree", result.Mode)
	assert.Equal(t, "Morning Show", result.Label)
	assert.Equal(t, 120, result.Seek)
}

func TestExplodeURIUnrecognized(t *testing.T) {
	a := newTestAdapter(t)
	_, err := a.ExplodeURI("not-a-uri")
	require.Error(t, err)
}

func TestExplodeURIUnknownStation(t *testing.T) {
	a := newTestAdapter(t)
	_, err := a.ExplodeURI("radiko://live/NOPE")
	require.Error(t, err)
}

func TestStartNowPlayingTickerTimefreePushesOnceWithoutScheduling(t *testing.T) {
	a := newTestAdapter(t)

	var got NowPlaying
	pushed := 0
	a.push = func(np NowPlaying) {
		got = np
		pushed++
	}

	day := mustParse(t, "20250110")
	start, _ := broadcastclock.BroadcastDayBounds(day)
	a.StartNowPlayingTicker("TBS", "timefree", start, start.Add(time.Hour), 30)

	assert.Equal(t, 1, pushed)
	assert.Equal(t, "Morning Show", got.Title)
	assert.Equal(t, int64(30000), got.SeekMs)
	assert.Equal(t, 3600, got.DurationSec)

	a.StopTicker() // no-op, nothing scheduled
}
