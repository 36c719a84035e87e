package graph

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/routegraph/internal/transit"
)

// PropertyKey names an entry in a property bag.
type PropertyKey string

const (
	KeyStationID      PropertyKey = "station_id"
	KeyPlatformID     PropertyKey = "platform_id"
	KeyRouteID        PropertyKey = "route_id"
	KeyServiceID      PropertyKey = "service_id"
	KeyTripID         PropertyKey = "trip_id"
	KeyRouteStationID PropertyKey = "route_station_id"
	KeyAreaID         PropertyKey = "area_id"
	KeyWalkID         PropertyKey = "walk_id"

	KeyTime      PropertyKey = "time"
	KeyDayOffset PropertyKey = "day_offset"
	KeyHour      PropertyKey = "hour"
	KeyCost      PropertyKey = "cost"

	KeyStartDate PropertyKey = "start_date"
	KeyEndDate   PropertyKey = "end_date"
	KeyStartTime PropertyKey = "start_time"
	KeyEndTime   PropertyKey = "end_time"

	KeyTripIDList     PropertyKey = "trip_id_list"
	KeyTransportMode  PropertyKey = "transport_mode"
	KeyTransportModes PropertyKey = "transport_modes"

	KeyLatitude    PropertyKey = "latitude"
	KeyLongitude   PropertyKey = "longitude"
	KeyMinEasting  PropertyKey = "min_easting"
	KeyMinNorthing PropertyKey = "min_northing"
	KeyMaxEasting  PropertyKey = "max_easting"
	KeyMaxNorthing PropertyKey = "max_northing"

	KeyStopSeqNum PropertyKey = "stop_seq_num"
)

// PropertyBag is the raw string-keyed heterogeneous property store shared by
// nodes and relationships. It is not safe for concurrent mutation; callers
// serialise writes through the store or a mutable transaction.
type PropertyBag struct {
	values map[PropertyKey]any
}

func NewPropertyBag() *PropertyBag {
	return &PropertyBag{values: make(map[PropertyKey]any)}
}

func (b *PropertyBag) Set(key PropertyKey, value any) {
	b.values[key] = value
}

func (b *PropertyBag) Get(key PropertyKey) (any, bool) {
	v, ok := b.values[key]
	return v, ok
}

func (b *PropertyBag) Has(key PropertyKey) bool {
	_, ok := b.values[key]
	return ok
}

func (b *PropertyBag) Remove(key PropertyKey) {
	delete(b.values, key)
}

// All returns a copy of the bag's contents.
func (b *PropertyBag) All() map[PropertyKey]any {
	out := make(map[PropertyKey]any, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

func (b *PropertyBag) Clone() *PropertyBag {
	clone := NewPropertyBag()
	for k, v := range b.values {
		if list, ok := v.([]string); ok {
			copied := make([]string, len(list))
			copy(copied, list)
			clone.values[k] = copied
			continue
		}
		clone.values[k] = v
	}
	return clone
}

// required fetches a property that must be present, producing a
// PropertyMissingError carrying the full dump when it is not.
func (b *PropertyBag) required(key PropertyKey) (any, error) {
	v, ok := b.values[key]
	if !ok {
		return nil, &PropertyMissingError{Key: key, Dump: b.All()}
	}
	return v, nil
}

// Props is the typed accessor layer over a raw property bag. Node and
// Relationship embed it so both share one implementation of the domain
// property mapping.
type Props struct {
	bag *PropertyBag
}

func newProps(bag *PropertyBag) Props {
	return Props{bag: bag}
}

func (p Props) Bag() *PropertyBag { return p.bag }

func (p Props) Has(key PropertyKey) bool { return p.bag.Has(key) }

// AllProperties exposes the raw dump, mainly for diagnostics and snapshots.
func (p Props) AllProperties() map[PropertyKey]any { return p.bag.All() }

// -- Domain identities. Each setter writes the entity's own id under its
// fixed key. Write-once is a caller discipline, not enforced here.

func (p Props) SetStation(id transit.StationID)   { p.bag.Set(KeyStationID, string(id)) }
func (p Props) SetPlatform(id transit.PlatformID) { p.bag.Set(KeyPlatformID, string(id)) }
func (p Props) SetRoute(id transit.RouteID)       { p.bag.Set(KeyRouteID, string(id)) }
func (p Props) SetService(id transit.ServiceID)   { p.bag.Set(KeyServiceID, string(id)) }
func (p Props) SetTrip(id transit.TripID)         { p.bag.Set(KeyTripID, string(id)) }
func (p Props) SetArea(id transit.AreaID)         { p.bag.Set(KeyAreaID, string(id)) }

func (p Props) SetRouteStation(id transit.RouteStationID) {
	p.bag.Set(KeyRouteStationID, string(id))
}

func (p Props) Station() (transit.StationID, error) {
	v, err := p.bag.required(KeyStationID)
	if err != nil {
		return "", err
	}
	return transit.StationID(v.(string)), nil
}

func (p Props) Route() (transit.RouteID, error) {
	v, err := p.bag.required(KeyRouteID)
	if err != nil {
		return "", err
	}
	return transit.RouteID(v.(string)), nil
}

func (p Props) Service() (transit.ServiceID, error) {
	v, err := p.bag.required(KeyServiceID)
	if err != nil {
		return "", err
	}
	return transit.ServiceID(v.(string)), nil
}

func (p Props) Trip() (transit.TripID, error) {
	v, err := p.bag.required(KeyTripID)
	if err != nil {
		return "", err
	}
	return transit.TripID(v.(string)), nil
}

func (p Props) Area() (transit.AreaID, error) {
	v, err := p.bag.required(KeyAreaID)
	if err != nil {
		return "", err
	}
	return transit.AreaID(v.(string)), nil
}

func (p Props) RouteStation() (transit.RouteStationID, error) {
	v, err := p.bag.required(KeyRouteStationID)
	if err != nil {
		return "", err
	}
	return transit.RouteStationID(v.(string)), nil
}

// SetWalkID tags a synthetic walk node with its origin and a fresh uuid so
// repeated queries from the same point never collide.
func (p Props) SetWalkID(origin transit.LatLong, uid uuid.UUID) {
	p.bag.Set(KeyWalkID, fmt.Sprintf("%v,%v_%s", origin.Lat, origin.Lon, uid))
}

func (p Props) WalkID() (string, error) {
	v, err := p.bag.required(KeyWalkID)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// -- Time. The wall-clock minutes and the crossed-midnight marker are two
// separate properties.

func (p Props) SetTime(t transit.ClockTime) {
	p.bag.Set(KeyTime, t.Minutes())
	if t.IsNextDay() {
		p.bag.Set(KeyDayOffset, true)
	} else {
		p.bag.Remove(KeyDayOffset)
	}
}

func (p Props) Time() (transit.ClockTime, error) {
	v, err := p.bag.required(KeyTime)
	if err != nil {
		return transit.ClockTime{}, err
	}
	_, nextDay := p.bag.Get(KeyDayOffset)
	return transit.ClockTimeFromMinutes(v.(int), nextDay), nil
}

func (p Props) SetHour(hour int) { p.bag.Set(KeyHour, hour) }

func (p Props) Hour() (int, error) {
	v, err := p.bag.required(KeyHour)
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (p Props) SetCost(cost time.Duration) {
	p.bag.Set(KeyCost, int(cost.Minutes()))
}

func (p Props) Cost() (time.Duration, error) {
	v, err := p.bag.required(KeyCost)
	if err != nil {
		return 0, err
	}
	return time.Duration(v.(int)) * time.Minute, nil
}

func (p Props) SetTimeRange(r transit.TimeRange) {
	p.bag.Set(KeyStartTime, r.Start.Minutes())
	p.bag.Set(KeyEndTime, r.End.Minutes())
}

func (p Props) SetStopSequence(seq int) { p.bag.Set(KeyStopSeqNum, seq) }

// -- Trip-id membership list. Kept as a sorted slice: membership tests
// dominate the search hot path, so binary search over a compact slice beats
// a hash set here.

func (p Props) AddTripID(id transit.TripID) {
	var list []string
	if v, ok := p.bag.Get(KeyTripIDList); ok {
		list = v.([]string)
	}
	idx := sort.SearchStrings(list, string(id))
	if idx < len(list) && list[idx] == string(id) {
		return // already present
	}
	list = append(list, "")
	copy(list[idx+1:], list[idx:])
	list[idx] = string(id)
	p.bag.Set(KeyTripIDList, list)
}

func (p Props) HasTripID(id transit.TripID) bool {
	v, ok := p.bag.Get(KeyTripIDList)
	if !ok {
		return false
	}
	list := v.([]string)
	idx := sort.SearchStrings(list, string(id))
	return idx < len(list) && list[idx] == string(id)
}

func (p Props) TripIDs() []transit.TripID {
	v, ok := p.bag.Get(KeyTripIDList)
	if !ok {
		return nil
	}
	list := v.([]string)
	out := make([]transit.TripID, len(list))
	for i, s := range list {
		out[i] = transit.TripID(s)
	}
	return out
}

// -- Transport modes. A single mode and a compact mode set are distinct
// properties: relationships carry the one mode they serve, station nodes
// accumulate the union of modes calling there.

func (p Props) SetTransportMode(m transit.Mode) {
	p.bag.Set(KeyTransportMode, m.Number())
}

func (p Props) TransportMode() (transit.Mode, error) {
	v, err := p.bag.required(KeyTransportMode)
	if err != nil {
		return transit.ModeUnknown, err
	}
	return transit.ModeFromNumber(v.(uint8)), nil
}

func (p Props) AddTransportMode(m transit.Mode) {
	modes := p.TransportModes()
	p.bag.Set(KeyTransportModes, uint16(modes.Add(m)))
}

func (p Props) TransportModes() transit.ModeSet {
	v, ok := p.bag.Get(KeyTransportModes)
	if !ok {
		return 0
	}
	return transit.ModeSet(v.(uint16))
}

// -- Geometry.

func (p Props) SetLatLong(pos transit.LatLong) {
	p.bag.Set(KeyLatitude, pos.Lat)
	p.bag.Set(KeyLongitude, pos.Lon)
}

func (p Props) LatLong() (transit.LatLong, error) {
	lat, err := p.bag.required(KeyLatitude)
	if err != nil {
		return transit.LatLong{}, err
	}
	lon, err := p.bag.required(KeyLongitude)
	if err != nil {
		return transit.LatLong{}, err
	}
	return transit.LatLong{Lat: lat.(float64), Lon: lon.(float64)}, nil
}

func (p Props) SetBounds(b transit.BoundingBox) {
	p.bag.Set(KeyMinEasting, b.MinEasting)
	p.bag.Set(KeyMinNorthing, b.MinNorthing)
	p.bag.Set(KeyMaxEasting, b.MaxEasting)
	p.bag.Set(KeyMaxNorthing, b.MaxNorthing)
}
