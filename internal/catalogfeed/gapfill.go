package catalogfeed

import (
	"fmt"
	"sort"
	"time"

	"github.com/arung-agamani/denpa-radio/internal/broadcastclock"
	"github.com/arung-agamani/denpa-radio/internal/catalog"
)

// minGapSeconds is the smallest schedule gap that triggers a synthetic
// filler program; smaller gaps are assumed to be rounding noise in the
// upstream feed and are left alone.
const minGapSeconds = 60

// gapFill sorts progs ascending by Ft and inserts synthetic filler programs
// (empty Title) wherever two consecutive programs leave a gap of at least
// minGapSeconds, including before the first program and after the last, so
// that the returned sequence covers the whole broadcast day
// [broadcastDate@05:00, broadcastDate+1@05:00) contiguously.
func gapFill(stationID string, broadcastDate time.Time, progs []*catalog.Program) []*catalog.Program {
	sort.Slice(progs, func(i, j int) bool {
		if progs[i].Ft.Equal(progs[j].Ft) {
			return progs[i].To.Before(progs[j].To)
		}
		return progs[i].Ft.Before(progs[j].Ft)
	})

	dayStart, dayEnd := broadcastclock.BroadcastDayBounds(broadcastDate)

	result := make([]*catalog.Program, 0, len(progs)+2)
	cursor := dayStart

	for _, p := range progs {
		if broadcastclock.SpanSec(cursor, p.Ft) >= minGapSeconds {
			result = append(result, filler(stationID, cursor, p.Ft))
		}
		result = append(result, p)
		if p.To.After(cursor) {
			cursor = p.To
		}
	}

	if broadcastclock.SpanSec(cursor, dayEnd) >= minGapSeconds {
		result = append(result, filler(stationID, cursor, dayEnd))
	}

	return result
}

func filler(stationID string, ft, to time.Time) *catalog.Program {
	return &catalog.Program{
		ProgID:    fmt.Sprintf("%s-gap-%s", stationID, broadcastclock.Format14(ft)),
		StationID: stationID,
		Ft:        ft,
		To:        to,
	}
}
