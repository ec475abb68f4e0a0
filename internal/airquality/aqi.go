package airquality

import "math"

// breakpoint maps a concentration band onto an AQI band.
type breakpoint struct {
	cLow, cHigh     float64
	aqiLow, aqiHigh float64
}

// EPA breakpoints (2024 PM2.5 revision). PM in µg/m³, O3 in ppm (8-hour).
var (
	pm25Breakpoints = []breakpoint{
		{0.0, 9.0, 0, 50},
		{9.1, 35.4, 51, 100},
		{35.5, 55.4, 101, 150},
		{55.5, 125.4, 151, 200},
		{125.5, 225.4, 201, 300},
		{225.5, 325.4, 301, 500},
	}

	pm10Breakpoints = []breakpoint{
		{0, 54, 0, 50},
		{55, 154, 51, 100},
		{155, 254, 101, 150},
		{255, 354, 151, 200},
		{355, 424, 201, 300},
		{425, 604, 301, 500},
	}

	o3Breakpoints = []breakpoint{
		{0.000, 0.054, 0, 50},
		{0.055, 0.070, 51, 100},
		{0.071, 0.085, 101, 150},
		{0.086, 0.105, 151, 200},
		{0.106, 0.200, 201, 300},
	}
)

// ozoneMicrogramsPerPPM converts O3 µg/m³ to ppm at 25°C and 1 atm.
const ozoneMicrogramsPerPPM = 1962.0

// ComputeIndex returns the overall AQI: the maximum sub-index across the
// measured pollutants.
func ComputeIndex(c Concentrations) (Index, error) {
	var best Index
	found := false

	consider := func(p Pollutant, value float64) {
		if !found || value > best.Value {
			best = Index{Value: value, Dominant: p}
			found = true
		}
	}

	if c.PM25 != nil {
		consider(PollutantPM25, subIndex(truncate(*c.PM25, 1), pm25Breakpoints))
	}
	if c.PM10 != nil {
		consider(PollutantPM10, subIndex(truncate(*c.PM10, 0), pm10Breakpoints))
	}
	if c.O3 != nil {
		consider(PollutantO3, subIndex(truncate(*c.O3/ozoneMicrogramsPerPPM, 3), o3Breakpoints))
	}

	if !found {
		return Index{}, ErrNoPollutants
	}

	best.Category = CategoryFor(best.Value)
	return best, nil
}

// subIndex linearly interpolates within the matching band. Values between
// bands (after truncation) fall into the upper band; values above the table
// are capped at the top of the last band.
func subIndex(conc float64, table []breakpoint) float64 {
	if conc <= 0 {
		return 0
	}
	for _, bp := range table {
		if conc <= bp.cHigh {
			if conc < bp.cLow {
				conc = bp.cLow
			}
			aqi := (bp.aqiHigh-bp.aqiLow)/(bp.cHigh-bp.cLow)*(conc-bp.cLow) + bp.aqiLow
			return math.Round(aqi)
		}
	}
	return table[len(table)-1].aqiHigh
}

func truncate(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Floor(v*scale) / scale
}
