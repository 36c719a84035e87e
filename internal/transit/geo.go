package transit

// LatLong is a WGS84 coordinate pair.
type LatLong struct {
	Lat float64
	Lon float64
}

// BoundingBox is an axis-aligned box in projected easting/northing space,
// used on grouped-locality nodes.
type BoundingBox struct {
	MinEasting  int64
	MinNorthing int64
	MaxEasting  int64
	MaxNorthing int64
}

func (b BoundingBox) Contains(easting, northing int64) bool {
	return easting >= b.MinEasting && easting <= b.MaxEasting &&
		northing >= b.MinNorthing && northing <= b.MaxNorthing
}
