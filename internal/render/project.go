package render

import (
	"math"

	"github.com/rotisserie/eris"
)

// Projection maps source coordinates to planar map coordinates.
type Projection interface {
	Project(x, y float64) (px, py float64)
}

// Planar passes coordinates through. Use it for layers already in a
// projected CRS such as state-plane feet.
type Planar struct{}

func (Planar) Project(x, y float64) (float64, float64) { return x, y }

// LCCParams describes a two-parallel Lambert Conformal Conic on the GRS80
// ellipsoid. Angles are in degrees.
type LCCParams struct {
	OriginLat     float64
	CentralLon    float64
	Parallel1     float64
	Parallel2     float64
	FalseEasting  float64
	FalseNorthing float64
	UnitsPerMeter float64 // 1 for metres, 3.2808333333333334 for US survey feet
}

const (
	semiMajorM = 6378137.0        // GRS80 semi-major axis (metres)
	e2         = 0.00669438002290 // GRS80 eccentricity squared
)

// LCC projects WGS-84 lon/lat (x = longitude, y = latitude) to easting and
// northing.
type LCC struct {
	p       LCCParams
	n, aF   float64
	rho0    float64
	lambda0 float64
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func lccM(phi float64) float64 {
	s := math.Sin(phi)
	return math.Cos(phi) / math.Sqrt(1-e2*s*s)
}

func lccT(phi float64) float64 {
	e := math.Sqrt(e2)
	s := math.Sin(phi)
	return math.Tan(math.Pi/4-phi/2) / math.Pow((1-e*s)/(1+e*s), e/2)
}

// NewLCC precomputes the projection constants.
func NewLCC(p LCCParams) (*LCC, error) {
	if p.UnitsPerMeter == 0 {
		p.UnitsPerMeter = 1
	}
	phi1, phi2 := radians(p.Parallel1), radians(p.Parallel2)
	if math.Abs(p.Parallel1) >= 90 || math.Abs(p.Parallel2) >= 90 || p.Parallel1 == -p.Parallel2 {
		return nil, eris.Errorf("render: invalid standard parallels %v, %v", p.Parallel1, p.Parallel2)
	}

	m1, t1 := lccM(phi1), lccT(phi1)
	var n float64
	if p.Parallel1 == p.Parallel2 {
		n = math.Sin(phi1)
	} else {
		m2, t2 := lccM(phi2), lccT(phi2)
		n = math.Log(m1/m2) / math.Log(t1/t2)
	}

	aF := semiMajorM * p.UnitsPerMeter * m1 / (n * math.Pow(t1, n))
	return &LCC{
		p:       p,
		n:       n,
		aF:      aF,
		rho0:    aF * math.Pow(lccT(radians(p.OriginLat)), n),
		lambda0: radians(p.CentralLon),
	}, nil
}

func (l *LCC) Project(lon, lat float64) (float64, float64) {
	rho := l.aF * math.Pow(lccT(radians(lat)), l.n)
	theta := l.n * (radians(lon) - l.lambda0)

	x := rho*math.Sin(theta) + l.p.FalseEasting
	y := l.rho0 - rho*math.Cos(theta) + l.p.FalseNorthing
	return x, y
}
