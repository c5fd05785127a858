// Package service implements the business logic behind the HTTP handlers:
// translating catalog/auth/relay state into the plain JSON shapes the
// handler layer serializes, so handlers stay thin and testable.
package service

import (
	"time"

	"github.com/arung-agamani/denpa-radio/internal/broadcastclock"
	"github.com/arung-agamani/denpa-radio/internal/catalog"
	"github.com/arung-agamani/denpa-radio/internal/relayerr"
)

// StationInfo is the station shape returned by the directory endpoints.
type StationInfo struct {
	StationID string `json:"stationId"`
	Name      string `json:"name"`
	Region    string `json:"region"`
	Area      string `json:"area"`
}

// ProgramInfo is the program shape embedded in directory and per-day
// responses. A nil *ProgramInfo means "no program at this instant".
type ProgramInfo struct {
	ProgID string `json:"progId"`
	Title  string `json:"title"`
	Pfm    string `json:"pfm"`
	Ft     string `json:"ft"`
	To     string `json:"to"`
	Img    string `json:"img"`
}

// StationWithProgram pairs a station with its current program, if any.
type StationWithProgram struct {
	StationInfo
	Program *ProgramInfo `json:"program"`
}

// CatalogService exposes read-only catalog queries shaped for the HTTP
// layer.
type CatalogService struct {
	store *catalog.Store
}

func NewCatalogService(store *catalog.Store) *CatalogService {
	return &CatalogService{store: store}
}

// Stations lists every known station, independent of program state.
func (s *CatalogService) Stations() []StationInfo {
	stations := s.store.Stations()
	result := make([]StationInfo, 0, len(stations))
	for _, st := range stations {
		result = append(result, toStationInfo(st))
	}
	return result
}

// StationsWithProgram lists every known station alongside whatever program
// is airing right now (nil when none is, including during a gap-filler
// slot — callers that want to distinguish a genuine program from silence
// check program.title == "").
func (s *CatalogService) StationsWithProgram(now time.Time) []StationWithProgram {
	stations := s.store.Stations()
	result := make([]StationWithProgram, 0, len(stations))
	for _, st := range stations {
		entry := StationWithProgram{StationInfo: toStationInfo(st)}
		if p := s.store.FindCurrent(st.StationID, now); p != nil {
			info := toProgramInfo(p)
			entry.Program = &info
		}
		result = append(result, entry)
	}
	return result
}

// ProgramsForDay returns one broadcast day's program list for a single
// station, sorted ascending by ft. Returns ErrNotFound if the station is
// unknown.
func (s *CatalogService) ProgramsForDay(stationID string, broadcastDate time.Time) ([]ProgramInfo, error) {
	if s.store.Station(stationID) == nil {
		return nil, relayerr.ErrNotFound
	}
	progs := s.store.ListForDay(stationID, broadcastDate)
	result := make([]ProgramInfo, 0, len(progs))
	for _, p := range progs {
		result = append(result, toProgramInfo(p))
	}
	return result, nil
}

func toStationInfo(st *catalog.Station) StationInfo {
	return StationInfo{
		StationID: st.StationID,
		Name:      st.DisplayName,
		Region:    st.RegionName,
		Area:      st.AreaID,
	}
}

func toProgramInfo(p *catalog.Program) ProgramInfo {
	return ProgramInfo{
		ProgID: p.ProgID,
		Title:  p.Title,
		Pfm:    p.Pfm,
		Ft:     broadcastclock.Format14(p.Ft),
		To:     broadcastclock.Format14(p.To),
		Img:    p.Img,
	}
}
