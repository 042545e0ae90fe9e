package dynalite

// levelEpsilon is the distance from 0 or 1 within which an accumulated
// position snaps to the bound.
const levelEpsilon = 0.01

// NormalizeLevel converts a raw bus level (1 = on, 255 = off) to a fraction
// between 0.0 (off) and 1.0 (on). Raw 0 is out of the bus range and clamps
// to 1.0.
func NormalizeLevel(raw int) float64 {
	return clampUnit(float64(255-raw) / 254)
}

// accumulate moves pos by delta scaled by 1/scale and keeps it in [0,1].
func accumulate(pos, delta, scale float64) float64 {
	if scale <= 0 {
		return pos
	}
	return snapUnit(pos + delta/scale)
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func snapUnit(v float64) float64 {
	switch {
	case v <= levelEpsilon:
		return 0
	case v >= 1-levelEpsilon:
		return 1
	default:
		return v
	}
}

// percent converts a fraction to a 0-100 integer percentage.
func percent(v float64) int {
	return int(clampUnit(v)*100 + 0.5)
}
