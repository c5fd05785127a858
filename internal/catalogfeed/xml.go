// Package catalogfeed fetches the upstream's station, area, and program XML
// feeds and populates a catalog.Store. Fetches fan out with a bounded
// concurrency cap; a single URL's failure is logged and skipped rather than
// failing the whole batch.
package catalogfeed

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// maxXMLBytes bounds how much of a response body the decoder will read,
// guarding against a malicious or misbehaving upstream serving an
// unbounded body.
const maxXMLBytes = 20 * 1024 * 1024

// regionDocXML is the raw shape of the station/region/full.xml document:
// one `<stations>` wrapper per region/area, each carrying the region's and
// area's display names as attributes, containing that region's stations.
type regionDocXML struct {
	XMLName xml.Name          `xml:"region"`
	Groups  []stationGroupXML `xml:"stations"`
}

type stationGroupXML struct {
	AreaID     string       `xml:"area_id,attr"`
	AreaName   string       `xml:"area_name,attr"`
	RegionName string       `xml:"region_name,attr"`
	Stations   []stationXML `xml:"station"`
}

type stationXML struct {
	ID        string   `xml:"id,attr"`
	Name      string   `xml:"name"`
	AsciiName string   `xml:"ascii_name"`
	AreaID    string   `xml:"area_id"`
	Banner    string   `xml:"banner"`
	Logos     []string `xml:"logo"`
	AreaFree  string   `xml:"areafree"`
	TimeFree  string   `xml:"timefree"`
}

// areaDocXML is the raw shape of the station/list/{areaId}.xml document: the
// set of stations permitted in one area, plus the area's display name.
type areaDocXML struct {
	XMLName  xml.Name         `xml:"stations"`
	AreaID   string           `xml:"area_id,attr"`
	AreaName string           `xml:"area_name,attr"`
	Stations []areaStationXML `xml:"station"`
}

type areaStationXML struct {
	ID string `xml:"id"`
}

// progDocXML is the raw shape of a program document (today/date/daily/weekly
// variants share this shape): one or more stations, each with an ordered
// sequence of prog elements. Because Stations and Progs are slice-typed
// fields, encoding/xml accepts either a single element or a repeated
// sequence transparently — this is where the "single vs array" duck-typing
// problem the source format has is normalized away, for free, by using a Go
// slice field instead of branching on arity at the call site.
type progDocXML struct {
	XMLName  xml.Name         `xml:"radiko"`
	Stations []progStationXML `xml:"stations>station"`
}

type progStationXML struct {
	ID    string   `xml:"id,attr"`
	Progs []progXML `xml:"progs>prog"`
}

type progXML struct {
	ID    string `xml:"id,attr"`
	Ft    string `xml:"ft,attr"`
	To    string `xml:"to,attr"`
	Title string `xml:"title"`
	Info  string `xml:"info"`
	Pfm   string `xml:"pfm"`
	Img   string `xml:"img"`
}

// decodeXML applies the same defensive settings across every feed type:
// a size-limited reader and entity expansion disabled to neutralize XXE.
func decodeXML(r io.Reader, v interface{}) error {
	limited := io.LimitReader(r, maxXMLBytes)
	dec := xml.NewDecoder(limited)
	dec.Strict = true
	dec.Entity = make(map[string]string)

	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode xml: %w", err)
	}
	return nil
}
