package relay

import (
	"testing"
	"time"

	"github.com/arung-agamani/denpa-radio/internal/relayerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTimeshiftModeFutureRefused(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	cfg := Config{TimeshiftPastDays: 7, TimeshiftFutureDays: 0}
	req := Request{
		Ft: now.Add(time.Hour),
		To: now.Add(2 * time.Hour),
	}

	_, err := resolveTimeshiftMode(cfg, req, now)
	require.Error(t, err)
	assert.ErrorIs(t, err, relayerr.ErrInvalidRequest)
}

func TestResolveTimeshiftModeOnAirBecomesLive(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	cfg := Config{TimeshiftPastDays: 7, TimeshiftFutureDays: 0}
	req := Request{
		Ft: now.Add(-30 * time.Minute),
		To: now.Add(30 * time.Minute),
	}

	mode, err := resolveTimeshiftMode(cfg, req, now)
	require.NoError(t, err)
	assert.Equal(t, ModeLive, mode)
}

func TestResolveTimeshiftModeTooOldRefused(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	cfg := Config{TimeshiftPastDays: 7, TimeshiftFutureDays: 0}
	req := Request{
		Ft: now.AddDate(0, 0, -8),
		To: now.AddDate(0, 0, -8).Add(time.Hour),
	}

	_, err := resolveTimeshiftMode(cfg, req, now)
	require.Error(t, err)
	assert.ErrorIs(t, err, relayerr.ErrInvalidRequest)
}

func TestResolveTimeshiftModeGenuineReplay(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	cfg := Config{TimeshiftPastDays: 7, TimeshiftFutureDays: 0}
	req := Request{
		Ft: now.Add(-3 * time.Hour),
		To: now.Add(-2 * time.Hour),
	}

	mode, err := resolveTimeshiftMode(cfg, req, now)
	require.NoError(t, err)
	assert.Equal(t, ModeTimefree, mode)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "resolving", stateResolving.String())
	assert.Equal(t, "closed", stateClosed.String())
}

func TestTopLevelURLSeekAdvancesFt(t *testing.T) {
	ft := time.Date(2025, 1, 10, 13, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 10, 14, 0, 0, 0, time.UTC)
	s := &Session{
		req: Request{StationID: "TBS", Mode: ModeTimefree, Ft: ft, To: to, Seek: 600},
	}

	url := s.topLevelURL()
	assert.Contains(t, url, "ft=20250110131000")
}
