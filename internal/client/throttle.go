package client

import (
	"math"
	"sync"
	"time"
)

// LocationThrottle is the producer-side rate limit on location samples: a new
// sample goes out only when the interval has elapsed OR the device moved past
// the distance threshold since the last successful emit, whichever first.
type LocationThrottle struct {
	mu        sync.Mutex
	interval  time.Duration
	distanceM float64
	hasLast   bool
	lastAt    time.Time
	lastLat   float64
	lastLng   float64
	now       func() time.Time
}

func NewLocationThrottle(interval time.Duration, distanceM float64) *LocationThrottle {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if distanceM <= 0 {
		distanceM = 50
	}
	return &LocationThrottle{
		interval:  interval,
		distanceM: distanceM,
		now:       time.Now,
	}
}

// Allow reports whether a sample at (lat, lng) should be emitted now. It is a
// pure check: the gate is consumed only by Mark, after the sample actually
// went out. An attempt that never reaches the wire leaves the window intact.
// The first sample always passes.
func (t *LocationThrottle) Allow(lat, lng float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.hasLast {
		return true
	}
	if t.now().Sub(t.lastAt) >= t.interval {
		return true
	}
	return haversineMeters(t.lastLat, t.lastLng, lat, lng) >= t.distanceM
}

// Mark records (lat, lng) as the last successful emit.
func (t *LocationThrottle) Mark(lat, lng float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hasLast = true
	t.lastAt = t.now()
	t.lastLat = lat
	t.lastLng = lng
}

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusM = 6371000.0

	dLat := deg2rad(lat2 - lat1)
	dLon := deg2rad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(lat1))*math.Cos(deg2rad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

func deg2rad(deg float64) float64 {
	return deg * math.Pi / 180.0
}
