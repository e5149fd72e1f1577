package instrument

import "math"

// Conversion constants from the instrument calibration sheets.
const (
	// The gauge controllers output log-scale voltages:
	// pressure in Pa is 10^(3v-10).
	gaugeSlope  = 3
	gaugeOffset = -10

	// Steinhart-Hart coefficients for the ICR/ICH thermistors.
	coefA = 3.354016e-03
	coefB = 2.460382e-04
	coefC = 3.405377e-06
	coefD = 1.034240e-07

	// r25 holds the thermistor resistance at 25C; the divider's
	// fixed resistor has the same value.
	r25 = 1e5
	// supplyVolts holds the divider supply voltage.
	supplyVolts = 3.3
)

// VoltsToPressure converts a gauge controller output voltage to a
// pressure in Pa. NaN converts to NaN.
func VoltsToPressure(v float64) float64 {
	return math.Pow(10, gaugeSlope*v+gaugeOffset)
}

// VoltsToTemperature converts a thermistor divider voltage to a
// temperature in degrees Celsius. Voltages outside the divider's
// possible output range, and NaN, convert to NaN.
func VoltsToTemperature(v float64) float64 {
	if v <= 0 || v >= supplyVolts {
		return math.NaN()
	}
	r := v / (supplyVolts - v) * r25
	lr := math.Log(r / r25)
	tk := 1 / (coefA + coefB*lr + coefC*lr*lr + coefD*lr*lr*lr)
	return tk - 273.15
}
