/*
Copyright © 2019 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package windfield

import (
	"fmt"
	"math"
	"sort"
)

// TurbulenceProfile calculates the standard deviations of the
// horizontal wind fluctuations.
type TurbulenceProfile struct {
	// Calibration scales every standard deviation.
	Calibration float64

	// Heights are the measurement heights [m] of the optional
	// calibration profile, in increasing order. UScale and VScale hold
	// the scale factors at each height.
	Heights, UScale, VScale []float64
}

// NewTurbulenceProfile returns a profile after checking that the
// calibration data are consistent.
func NewTurbulenceProfile(calibration float64, heights, uScale, vScale []float64) (*TurbulenceProfile, error) {
	if len(uScale) != len(heights) || len(vScale) != len(heights) {
		return nil, fmt.Errorf("windfield: turbulence profile has %d heights, %d u scales and %d v scales",
			len(heights), len(uScale), len(vScale))
	}
	if !sort.Float64sAreSorted(heights) {
		return nil, fmt.Errorf("windfield: turbulence profile heights %v are not increasing", heights)
	}
	return &TurbulenceProfile{
		Calibration: calibration,
		Heights:     heights,
		UScale:      uScale,
		VScale:      vScale,
	}, nil
}

// StdDev returns the standard deviations [m/s] of the u and v wind
// fluctuations at height z [m] above the ground or buildings, for
// roughness length z0 [m] and wind speed [m/s].
func (t *TurbulenceProfile) StdDev(z, z0, speed float64) (u0, v0 float64) {
	u0 = speed * (0.2*math.Pow(speed, -0.9) + 0.32*z0 + 0.18)
	if !(u0 > 0.3) {
		u0 = 0.3
	}
	u0 *= t.Calibration
	v0 = u0

	n := len(t.Heights)
	if n == 0 {
		return u0, v0
	}
	switch {
	case z <= t.Heights[0]:
		return u0 * t.UScale[0], v0 * t.VScale[0]
	case z >= t.Heights[n-1]:
		return u0 * t.UScale[n-1], v0 * t.VScale[n-1]
	}
	idx := 0
	for i, h := range t.Heights {
		if z > h {
			idx = i
		}
	}
	frac := (z - t.Heights[idx]) / (t.Heights[idx+1] - t.Heights[idx])
	u0 *= t.UScale[idx] + (t.UScale[idx+1]-t.UScale[idx])*frac
	v0 *= t.VScale[idx] + (t.VScale[idx+1]-t.VScale[idx])*frac
	return u0, v0
}

// PointSourceStdDev is StdDev for particles released from point
// sources, which spread further because of plume rise. sigma is the
// plume rise velocity scale [m/s].
func (t *TurbulenceProfile) PointSourceStdDev(z, z0, speed, sigma float64) (u0, v0 float64) {
	u0, v0 = t.StdDev(z, z0, speed)
	return u0 + math.Abs(sigma), v0 + math.Abs(sigma)
}
