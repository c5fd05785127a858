package service

import "time"

// NowPlayingGate is the slice of *adapter.Adapter the play route needs to
// gate the now-playing push around a StreamSession's lifetime. Declared
// here, rather than importing the adapter package directly, to keep
// server/handler's dependency graph one-directional.
type NowPlayingGate interface {
	StartNowPlayingTicker(stationID, mode string, ft, to time.Time, seek int)
	StopTicker()
}
