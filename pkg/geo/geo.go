// Package geo provides coordinate reference system codes and the
// reprojection delegation interface used by the rasterization engine.
// The engine itself performs no geodetic math beyond UTM zone selection;
// actual coordinate conversion is delegated to an external Reprojector.
package geo

import (
	"fmt"
	"math"
)

// EPSG is an authority code identifying a geographic or projected
// coordinate reference system.
type EPSG int

// WGS84 is the geodetic longitude/latitude system used as the default
// input coordinate system for triangulated point clouds.
const WGS84 EPSG = 4326

// String returns the canonical "EPSG:nnnn" form of the code.
func (e EPSG) String() string {
	return fmt.Sprintf("EPSG:%d", int(e))
}

// UTMZoneEPSG returns the EPSG code of the Universal Transverse Mercator
// zone containing the given geodetic point. The zone is selected from the
// longitude (zone = floor((lon+180)/6) + 1) and the hemisphere from the
// sign of the latitude: northern zones map to 326xx, southern to 327xx.
//
// It is used to pick a default target coordinate system when the caller
// does not supply one.
func UTMZoneEPSG(lon, lat float64) EPSG {
	zone := int(math.Floor((lon+180.0)/6.0)) + 1
	if lat >= 0 {
		return EPSG(32600 + zone)
	}
	return EPSG(32700 + zone)
}

// Reprojector converts point coordinates between coordinate reference
// systems. Implementations are external to the engine; the slices are
// converted in place.
type Reprojector interface {
	Convert(x, y, z []float64, from, to EPSG) error
}

// ReprojectorFunc adapts a plain function to the Reprojector interface.
type ReprojectorFunc func(x, y, z []float64, from, to EPSG) error

// Convert implements Reprojector.
func (f ReprojectorFunc) Convert(x, y, z []float64, from, to EPSG) error {
	return f(x, y, z, from, to)
}
