package catalogfeed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arung-agamani/denpa-radio/config"
	"github.com/arung-agamani/denpa-radio/internal/broadcastclock"
	"github.com/arung-agamani/denpa-radio/internal/catalog"
	"github.com/arung-agamani/denpa-radio/internal/relayerr"
	"github.com/arung-agamani/denpa-radio/internal/upstreamauth"
)

const (
	stationFullURL      = "https://radiko.jp/v3/station/region/full.xml"
	stationAreaTpl      = "https://radiko.jp/v3/station/list/%s.xml"
	progDateAreaTpl     = "https://radiko.jp/v3/program/date/%s/%s.xml"
	progTodayAreaTpl    = "https://radiko.jp/v3/program/today/%s.xml"
	progDailyStationTpl = "https://radiko.jp/v3/program/station/date/%s/%s.xml"
)

// defaultConcurrency is used if cfg.FetchConcurrency is unset.
const defaultConcurrency = 5

// AuthClient is the subset of upstreamauth.Client this package depends on.
type AuthClient interface {
	Token() upstreamauth.Snapshot
	PremiumActive() bool
}

// Fetcher acquires program XML from the upstream and populates a
// catalog.Store.
type Fetcher struct {
	http  *http.Client
	auth  AuthClient
	store *catalog.Store
	cfg   *config.Config
}

// New constructs a Fetcher.
func New(auth AuthClient, store *catalog.Store, cfg *config.Config) *Fetcher {
	return &Fetcher{
		http:  &http.Client{Timeout: 10 * time.Second},
		auth:  auth,
		store: store,
		cfg:   cfg,
	}
}

func (f *Fetcher) concurrency() int {
	if f.cfg != nil && f.cfg.FetchConcurrency > 0 {
		return f.cfg.FetchConcurrency
	}
	return defaultConcurrency
}

// Bootstrap fetches the full station list and, for each area, its allowed
// station ids and today's program feed. Total failure of any one fetch is
// logged and skipped; the caller always gets a nil error so the server can
// start even if the upstream is entirely unreachable — lookups will simply
// miss until a later refresh.
func (f *Fetcher) Bootstrap(ctx context.Context, areaIDs []string) error {
	if err := f.fetchStationFull(ctx); err != nil {
		slog.Warn("catalogfeed: station/region/full fetch failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency())

	for _, areaID := range areaIDs {
		areaID := areaID
		g.Go(func() error {
			f.bootstrapArea(gctx, areaID)
			return nil
		})
	}
	return g.Wait()
}

func (f *Fetcher) bootstrapArea(ctx context.Context, areaID string) {
	if err := f.fetchArea(ctx, areaID); err != nil {
		slog.Warn("catalogfeed: area fetch failed", "areaId", areaID, "error", err)
		return
	}
	if err := f.fetchProgToday(ctx, areaID); err != nil {
		slog.Warn("catalogfeed: today program fetch failed", "areaId", areaID, "error", err)
	}
}

// RefreshDaily is the 04:59 cron task: fetch each area's program feed for an
// explicit yyyymmdd date, so that the new broadcast day becomes queryable
// immediately after rollover, then purge stale programs.
func (f *Fetcher) RefreshDaily(ctx context.Context, areaIDs []string, date time.Time) error {
	dateStr := broadcastclock.Format(date, "$1$2$3")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency())

	for _, areaID := range areaIDs {
		areaID := areaID
		g.Go(func() error {
			if err := f.fetchProgDateArea(gctx, areaID, dateStr); err != nil {
				slog.Warn("catalogfeed: daily refresh fetch failed", "areaId", areaID, "date", dateStr, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// FetchStation lazily fetches a single station's single-day program feed.
// Called by the relay when a lookup misses and the requested instant is
// within the allowed time-shift window.
func (f *Fetcher) FetchStation(ctx context.Context, stationID string, broadcastDate time.Time) error {
	dateStr := broadcastclock.Format(broadcastDate, "$1$2$3")
	url := fmt.Sprintf(progDailyStationTpl, dateStr, stationID)

	var doc progDocXML
	if err := f.getAndDecode(ctx, url, &doc); err != nil {
		return err
	}
	f.ingestProgDoc(&doc, broadcastDate)
	return nil
}

func (f *Fetcher) fetchStationFull(ctx context.Context) error {
	var doc regionDocXML
	if err := f.getAndDecode(ctx, stationFullURL, &doc); err != nil {
		return err
	}

	for _, group := range doc.Groups {
		for _, raw := range group.Stations {
			if raw.ID == "" {
				continue
			}
			logo := ""
			if len(raw.Logos) > 0 {
				logo = raw.Logos[len(raw.Logos)-1]
			}
			areaID := raw.AreaID
			if areaID == "" {
				areaID = group.AreaID
			}
			st := &catalog.Station{
				StationID:    raw.ID,
				AsciiName:    raw.AsciiName,
				DisplayName:  raw.Name,
				RegionName:   group.RegionName,
				AreaID:       areaID,
				AreaDisplay:  group.AreaName,
				BannerURL:    raw.Banner,
				LogoURL:      logo,
				AreaFreeFlag: raw.AreaFree == "1",
				TimeFreeFlag: raw.TimeFree == "1",
			}
			if f.admitted(st) {
				f.store.UpsertStation(st)
			}
		}
	}
	return nil
}

func (f *Fetcher) fetchArea(ctx context.Context, areaID string) error {
	url := fmt.Sprintf(stationAreaTpl, areaID)
	var doc areaDocXML
	if err := f.getAndDecode(ctx, url, &doc); err != nil {
		return err
	}

	ids := make([]string, 0, len(doc.Stations))
	for _, s := range doc.Stations {
		if s.ID != "" {
			ids = append(ids, s.ID)
		}
	}

	f.store.UpsertArea(&catalog.Area{
		AreaID:     areaID,
		AreaName:   doc.AreaName,
		StationIDs: ids,
	})
	return nil
}

func (f *Fetcher) fetchProgToday(ctx context.Context, areaID string) error {
	url := fmt.Sprintf(progTodayAreaTpl, areaID)
	var doc progDocXML
	if err := f.getAndDecode(ctx, url, &doc); err != nil {
		return err
	}
	f.ingestProgDoc(&doc, broadcastclock.BroadcastDate(broadcastclock.Now()))
	return nil
}

func (f *Fetcher) fetchProgDateArea(ctx context.Context, areaID, dateStr string) error {
	url := fmt.Sprintf(progDateAreaTpl, dateStr, areaID)
	var doc progDocXML
	if err := f.getAndDecode(ctx, url, &doc); err != nil {
		return err
	}
	date, err := broadcastclock.Parse(dateStr)
	if err != nil {
		return err
	}
	f.ingestProgDoc(&doc, date)
	return nil
}

// ingestProgDoc normalizes raw ft/to strings to wall-clock (broadcastclock.
// Parse already implements the 24-29 hour convention), gap-fills each
// station's sequence for the day, and upserts the result into the store.
func (f *Fetcher) ingestProgDoc(doc *progDocXML, broadcastDate time.Time) {
	for _, rawStation := range doc.Stations {
		if rawStation.ID == "" {
			continue
		}
		if f.store.Station(rawStation.ID) == nil {
			continue // unknown/not-admitted station; nothing to attach programs to
		}

		progs := make([]*catalog.Program, 0, len(rawStation.Progs))
		for _, raw := range rawStation.Progs {
			ft, err := broadcastclock.Parse(raw.Ft)
			if err != nil {
				slog.Warn("catalogfeed: skipping program with unparseable ft", "stationId", rawStation.ID, "ft", raw.Ft)
				continue
			}
			to, err := broadcastclock.Parse(raw.To)
			if err != nil {
				slog.Warn("catalogfeed: skipping program with unparseable to", "stationId", rawStation.ID, "to", raw.To)
				continue
			}
			if err := broadcastclock.ValidateInterval(ft, to); err != nil {
				slog.Warn("catalogfeed: skipping program with invalid interval", "stationId", rawStation.ID, "error", err)
				continue
			}

			progs = append(progs, &catalog.Program{
				ProgID:    rawStation.ID + raw.ID,
				StationID: rawStation.ID,
				Ft:        ft,
				To:        to,
				Title:     raw.Title,
				Info:      raw.Info,
				Pfm:       raw.Pfm,
				Img:       raw.Img,
			})
		}

		for _, p := range gapFill(rawStation.ID, broadcastDate, progs) {
			f.store.UpsertProgram(p)
		}
	}
}

// admitted implements the station admission rule: premium-active OR the
// station's area is in the user-enabled set. The "stationId in the
// resolved area's stationIds" half of the rule is applied when a program
// document's per-station entries are ingested against an already-populated
// area (see ingestProgDoc's unknown-station skip), since area membership
// isn't known until fetchArea has run.
func (f *Fetcher) admitted(st *catalog.Station) bool {
	if f.auth.PremiumActive() {
		return true
	}
	if f.cfg != nil && f.cfg.EnabledAreas[st.AreaID] {
		return true
	}
	snap := f.auth.Token()
	return snap.AreaID != "" && snap.AreaID == st.AreaID
}

func (f *Fetcher) getAndDecode(ctx context.Context, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	snap := f.auth.Token()
	if snap.Token != "" {
		req.Header.Set("X-Radiko-AuthToken", snap.Token)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: upstream returned status %s", relayerr.ErrUpstream, strconv.Itoa(resp.StatusCode))
	}

	return decodeXML(resp.Body, v)
}
