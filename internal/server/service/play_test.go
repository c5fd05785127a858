package service

import (
	"testing"

	"github.com/arung-agamani/denpa-radio/internal/catalog"
	"github.com/arung-agamani/denpa-radio/internal/relay"
	"github.com/arung-agamani/denpa-radio/internal/relayerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeWithTBS() *catalog.Store {
	store := catalog.New()
	store.UpsertStation(&catalog.Station{StationID: "TBS"})
	return store
}

func TestBuildPlayRequestMissingStationID(t *testing.T) {
	_, err := BuildPlayRequest(storeWithTBS(), PlayParams{})
	require.ErrorIs(t, err, relayerr.ErrInvalidRequest)
}

func TestBuildPlayRequestUnknownStation(t *testing.T) {
	_, err := BuildPlayRequest(catalog.New(), PlayParams{StationID: "ZZZ"})
	require.ErrorIs(t, err, relayerr.ErrNotFound)
	assert.Contains(t, err.Error(), "not in available stations")
}

func TestBuildPlayRequestLiveModeWhenFtToEmpty(t *testing.T) {
	req, err := BuildPlayRequest(storeWithTBS(), PlayParams{StationID: "TBS"})
	require.NoError(t, err)
	assert.Equal(t, relay.ModeLive, req.Mode)
	assert.Equal(t, "TBS", req.StationID)
}

func TestBuildPlayRequestMismatchedFtTo(t *testing.T) {
	_, err := BuildPlayRequest(storeWithTBS(), PlayParams{StationID: "TBS", Ft: "20250110130000"})
	require.ErrorIs(t, err, relayerr.ErrInvalidRequest)

	_, err = BuildPlayRequest(storeWithTBS(), PlayParams{StationID: "TBS", To: "20250110140000"})
	require.ErrorIs(t, err, relayerr.ErrInvalidRequest)
}

func TestBuildPlayRequestInvalidFt(t *testing.T) {
	_, err := BuildPlayRequest(storeWithTBS(), PlayParams{StationID: "TBS", Ft: "not-a-date", To: "20250110140000"})
	require.ErrorIs(t, err, relayerr.ErrInvalidRequest)
}

func TestBuildPlayRequestInvalidInterval(t *testing.T) {
	_, err := BuildPlayRequest(storeWithTBS(), PlayParams{StationID: "TBS", Ft: "20250110140000", To: "20250110130000"})
	require.ErrorIs(t, err, relayerr.ErrInvalidInterval)
}

func TestBuildPlayRequestValidTimeshift(t *testing.T) {
	req, err := BuildPlayRequest(storeWithTBS(), PlayParams{StationID: "TBS", Ft: "20250110130000", To: "20250110140000", Seek: "600"})
	require.NoError(t, err)
	assert.Equal(t, relay.ModeTimefree, req.Mode)
	assert.Equal(t, 600, req.Seek)
}

func TestBuildPlayRequestNegativeSeek(t *testing.T) {
	_, err := BuildPlayRequest(storeWithTBS(), PlayParams{StationID: "TBS", Ft: "20250110130000", To: "20250110140000", Seek: "-5"})
	require.ErrorIs(t, err, relayerr.ErrInvalidRequest)
}

func TestBuildPlayRequestNonIntegerSeek(t *testing.T) {
	_, err := BuildPlayRequest(storeWithTBS(), PlayParams{StationID: "TBS", Ft: "20250110130000", To: "20250110140000", Seek: "soon"})
	require.ErrorIs(t, err, relayerr.ErrInvalidRequest)
}
