package catalogfeed

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arung-agamani/denpa-radio/config"
	"github.com/arung-agamani/denpa-radio/internal/broadcastclock"
	"github.com/arung-agamani/denpa-radio/internal/catalog"
	"github.com/arung-agamani/denpa-radio/internal/upstreamauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	snap    upstreamauth.Snapshot
	premium bool
}

func (f *fakeAuth) Token() upstreamauth.Snapshot { return f.snap }
func (f *fakeAuth) PremiumActive() bool          { return f.premium }

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := broadcastclock.Parse(s)
	require.NoError(t, err)
	return parsed
}

func TestGapFillCoversWholeDay(t *testing.T) {
	day := mustParse(t, "20250110")
	start, end := broadcastclock.BroadcastDayBounds(day)

	progs := []*catalog.Program{
		{ProgID: "TBS-1", StationID: "TBS", Ft: start.Add(2 * time.Hour), To: start.Add(3 * time.Hour), Title: "Show A"},
		{ProgID: "TBS-2", StationID: "TBS", Ft: start.Add(5 * time.Hour), To: start.Add(6 * time.Hour), Title: "Show B"},
	}

	filled := gapFill("TBS", day, progs)

	require.NotEmpty(t, filled)
	assert.True(t, filled[0].Ft.Equal(start))
	assert.True(t, filled[len(filled)-1].To.Equal(end))

	for i := 0; i+1 < len(filled); i++ {
		assert.True(t, filled[i].To.Equal(filled[i+1].Ft), "gap between entries %d and %d", i, i+1)
	}

	var fillerCount, realCount int
	for _, p := range filled {
		if p.IsGapFiller() {
			fillerCount++
		} else {
			realCount++
		}
	}
	assert.Equal(t, 2, realCount)
	assert.GreaterOrEqual(t, fillerCount, 2)
}

func TestGapFillNoFillerForTinyGap(t *testing.T) {
	day := mustParse(t, "20250110")
	start, _ := broadcastclock.BroadcastDayBounds(day)

	progs := []*catalog.Program{
		{ProgID: "TBS-1", StationID: "TBS", Ft: start, To: start.Add(time.Hour)},
		{ProgID: "TBS-2", StationID: "TBS", Ft: start.Add(time.Hour).Add(10 * time.Second), To: start.Add(2 * time.Hour)},
	}

	filled := gapFill("TBS", day, progs)

	for _, p := range filled {
		if p.ProgID != "TBS-1" && p.ProgID != "TBS-2" {
			t.Fatalf("unexpected filler for a sub-minute gap: %+v", p)
		}
	}
}

const sampleProgXML = `<?xml version="1.0" encoding="UTF-8"?>
<radiko>
  <stations>
    <station id="TBS">
      <progs>
        <prog id="111" ft="20250110140000" to="20250110150000">
          <title>Afternoon Show</title>
          <info>info text</info>
          <pfm>Someone</pfm>
          <img>http://example/img.png</img>
        </prog>
      </progs>
    </station>
  </stations>
</radiko>`

func TestFetchProgTodayIngestsAndAdmitsKnownStation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		w.Write([]byte(sampleProgXML))
	}))
	defer srv.Close()

	store := catalog.New()
	store.UpsertStation(&catalog.Station{StationID: "TBS", AreaID: "JP13"})

	auth := &fakeAuth{snap: upstreamauth.Snapshot{Token: "tok", AreaID: "JP13"}}
	cfg := &config.Config{EnabledAreas: map[string]bool{}}
	f := New(auth, store, cfg)

	var doc progDocXML
	require.NoError(t, f.getAndDecode(t.Context(), srv.URL, &doc))
	f.ingestProgDoc(&doc, mustParse(t, "20250110"))

	got := store.FindAt("TBS", mustParse(t, "20250110143000"))
	require.NotNil(t, got)
	assert.Equal(t, "Afternoon Show", got.Title)
}

const sampleRegionXML = `<?xml version="1.0" encoding="UTF-8"?>
<region>
  <stations area_id="JP13" area_name="TOKYO" region_name="KANTO">
    <station id="TBS">
      <name>TBS RADIO</name>
      <ascii_name>TBS RADIO</ascii_name>
      <area_id>JP13</area_id>
      <banner>http://example/banner.png</banner>
      <logo>http://example/logo.png</logo>
      <areafree>0</areafree>
      <timefree>1</timefree>
    </station>
  </stations>
</region>`

func TestFetchStationFullPopulatesRegionAndAreaDisplay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		w.Write([]byte(sampleRegionXML))
	}))
	defer srv.Close()

	store := catalog.New()
	auth := &fakeAuth{snap: upstreamauth.Snapshot{AreaID: "JP13"}}
	cfg := &config.Config{EnabledAreas: map[string]bool{}}
	f := New(auth, store, cfg)

	var doc regionDocXML
	require.NoError(t, f.getAndDecode(t.Context(), srv.URL, &doc))
	require.Len(t, doc.Groups, 1)
	require.Len(t, doc.Groups[0].Stations, 1)
	assert.Equal(t, "KANTO", doc.Groups[0].RegionName)
	assert.Equal(t, "TOKYO", doc.Groups[0].AreaName)

	for _, group := range doc.Groups {
		for _, raw := range group.Stations {
			st := &catalog.Station{
				StationID:   raw.ID,
				RegionName:  group.RegionName,
				AreaID:      raw.AreaID,
				AreaDisplay: group.AreaName,
			}
			if f.admitted(st) {
				store.UpsertStation(st)
			}
		}
	}

	got := store.Station("TBS")
	require.NotNil(t, got)
	assert.Equal(t, "KANTO", got.RegionName)
	assert.Equal(t, "TOKYO", got.AreaDisplay)
}

func TestAdmissionRule(t *testing.T) {
	store := catalog.New()
	cfg := &config.Config{EnabledAreas: map[string]bool{"JP27": true}}

	premiumAuth := &fakeAuth{premium: true}
	fPremium := New(premiumAuth, store, cfg)
	assert.True(t, fPremium.admitted(&catalog.Station{StationID: "ABC", AreaID: "JP1"}))

	enabledAreaAuth := &fakeAuth{snap: upstreamauth.Snapshot{AreaID: "JP13"}}
	fEnabled := New(enabledAreaAuth, store, cfg)
	assert.True(t, fEnabled.admitted(&catalog.Station{StationID: "ABC", AreaID: "JP27"}))
	assert.False(t, fEnabled.admitted(&catalog.Station{StationID: "ABC", AreaID: "JP1"}))

	resolvedAreaAuth := &fakeAuth{snap: upstreamauth.Snapshot{AreaID: "JP13"}}
	fResolved := New(resolvedAreaAuth, store, &config.Config{EnabledAreas: map[string]bool{}})
	assert.True(t, fResolved.admitted(&catalog.Station{StationID: "TBS", AreaID: "JP13"}))
	assert.False(t, fResolved.admitted(&catalog.Station{StationID: "TBS", AreaID: "JP1"}))
}
