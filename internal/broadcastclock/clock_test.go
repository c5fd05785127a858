package broadcastclock

import (
	"errors"
	"testing"
	"time"

	"github.com/arung-agamani/denpa-radio/internal/relayerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBoundaries(t *testing.T) {
	cases := []struct {
		in   string
		want string // RFC3339 in JST
	}{
		{"2025010105", "2025-01-01T05:00:00+09:00"},
		{"20250101240000", "2025-01-02T00:00:00+09:00"},
		{"20250101290000", "2025-01-02T05:00:00+09:00"},
		{"20250101235959", "2025-01-01T23:59:59+09:00"},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		require.NoError(t, err, c.in)
		want, err := time.Parse(time.RFC3339, c.want)
		require.NoError(t, err)
		assert.True(t, got.Equal(want), "parse(%q) = %s, want %s", c.in, got, want)
	}
}

func TestParseRejectsNonNumeric(t *testing.T) {
	_, err := Parse("2025AB0105")
	require.Error(t, err)
	assert.True(t, errors.Is(err, relayerr.ErrInvalidRequest))
}

func TestParseRejectsOverlong(t *testing.T) {
	_, err := Parse("202501012359590")
	require.Error(t, err)
	assert.True(t, errors.Is(err, relayerr.ErrInvalidRequest))
}

func TestFormatParseRoundTrip(t *testing.T) {
	inputs := []string{"20250110", "2025011014", "20250110143000"}
	for _, s := range inputs {
		padded := s
		for len(padded) < 14 {
			padded += "0"
		}
		t.Run(s, func(t *testing.T) {
			parsed, err := Parse(s)
			require.NoError(t, err)
			assert.Equal(t, padded, Format14(parsed))
		})
	}
}

func TestFormatBroadcastDayRoundTrip(t *testing.T) {
	cases := []string{"20250101240000", "20250101290000", "20250101050000", "20250101235959"}
	for _, s := range cases {
		t.Run(s, func(t *testing.T) {
			parsed, err := Parse(s)
			require.NoError(t, err)
			start, _ := BroadcastDayBounds(BroadcastDate(parsed))
			assert.Equal(t, s, FormatBroadcastDay(parsed, start))
		})
	}
}

func TestBroadcastDate(t *testing.T) {
	early, err := Parse("20250110030000")
	require.NoError(t, err)
	assert.Equal(t, "20250109", Format(BroadcastDate(early), "$1$2$3"))

	late, err := Parse("20250110083000")
	require.NoError(t, err)
	assert.Equal(t, "20250110", Format(BroadcastDate(late), "$1$2$3"))
}

func TestCompareProgramToNow(t *testing.T) {
	ft, err := Parse("20250110140000")
	require.NoError(t, err)
	to := ft.Add(time.Hour)

	assert.EqualValues(t, 0, CompareProgramToNow(ft, to, ft))
	assert.Less(t, CompareProgramToNow(ft, to, to), int64(0))
	assert.Greater(t, CompareProgramToNow(ft, to, ft.Add(-time.Minute)), int64(0))
}

func TestSpanSec(t *testing.T) {
	a, err := Parse("20250110140000")
	require.NoError(t, err)
	b := a.Add(90 * time.Second)
	assert.EqualValues(t, 90, SpanSec(a, b))
	assert.EqualValues(t, -90, SpanSec(b, a))
}

func TestValidateInterval(t *testing.T) {
	ft, err := Parse("20250110140000")
	require.NoError(t, err)

	require.NoError(t, ValidateInterval(ft, ft.Add(time.Hour)))

	err = ValidateInterval(ft, ft)
	require.Error(t, err)
	assert.True(t, errors.Is(err, relayerr.ErrInvalidInterval))

	err = ValidateInterval(ft, ft.Add(25*time.Hour))
	require.Error(t, err)
	assert.True(t, errors.Is(err, relayerr.ErrInvalidInterval))
}

func TestBroadcastNow(t *testing.T) {
	before := Now()
	bn := BroadcastNow(20)
	after := Now()
	assert.True(t, !bn.After(before) || !bn.After(after))
	assert.LessOrEqual(t, before.Sub(bn), 21*time.Second)
}
