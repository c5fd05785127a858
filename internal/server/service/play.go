package service

import (
	"fmt"
	"strconv"

	"github.com/arung-agamani/denpa-radio/internal/broadcastclock"
	"github.com/arung-agamani/denpa-radio/internal/catalog"
	"github.com/arung-agamani/denpa-radio/internal/relay"
	"github.com/arung-agamani/denpa-radio/internal/relayerr"
)

// PlayParams is the raw, unvalidated query-string input to the play route.
type PlayParams struct {
	StationID string
	Ft        string
	To        string
	Seek      string
}

// BuildPlayRequest validates PlayParams and produces a relay.Request. An
// empty Ft/To pair means live mode; a non-empty pair requires both to
// parse as 14-digit wall-clock times with to > ft, and seek, if present,
// must be a non-negative integer of seconds. store is consulted to reject
// an unknown stationId before any upstream work is attempted.
func BuildPlayRequest(store *catalog.Store, p PlayParams) (relay.Request, error) {
	if p.StationID == "" {
		return relay.Request{}, fmt.Errorf("%w: stationId is required", relayerr.ErrInvalidRequest)
	}
	if store.Station(p.StationID) == nil {
		return relay.Request{}, fmt.Errorf("%w: stationId %q is not in available stations", relayerr.ErrNotFound, p.StationID)
	}

	if p.Ft == "" && p.To == "" {
		return relay.Request{StationID: p.StationID, Mode: relay.ModeLive}, nil
	}
	if p.Ft == "" || p.To == "" {
		return relay.Request{}, fmt.Errorf("%w: ft and to must both be supplied for time-shift playback", relayerr.ErrInvalidRequest)
	}

	ft, err := broadcastclock.Parse(p.Ft)
	if err != nil {
		return relay.Request{}, err
	}
	to, err := broadcastclock.Parse(p.To)
	if err != nil {
		return relay.Request{}, err
	}
	if err := broadcastclock.ValidateInterval(ft, to); err != nil {
		return relay.Request{}, err
	}

	seek := 0
	if p.Seek != "" {
		seek, err = strconv.Atoi(p.Seek)
		if err != nil {
			return relay.Request{}, fmt.Errorf("%w: seek must be an integer", relayerr.ErrInvalidRequest)
		}
		if seek < 0 {
			return relay.Request{}, fmt.Errorf("%w: seek must not be negative", relayerr.ErrInvalidRequest)
		}
	}

	return relay.Request{
		StationID: p.StationID,
		Mode:      relay.ModeTimefree,
		Ft:        ft,
		To:        to,
		Seek:      seek,
	}, nil
}
