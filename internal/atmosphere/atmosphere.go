// Package atmosphere implements the 1976 International Standard Atmosphere
// up to the lower stratosphere, plus the barometric height formula used to
// turn a pressure ratio into a height difference.
package atmosphere

import "math"

const (
	// SeaLevelPressure is the ISA sea level pressure in Pascal.
	SeaLevelPressure = 101325.0
	// SeaLevelTemperature is the ISA sea level temperature in Kelvin.
	SeaLevelTemperature = 288.15
	// SeaLevelDensity is the ISA sea level air density in kg/m³.
	SeaLevelDensity = 1.225

	// KelvinOffset converts degrees Celsius to Kelvin.
	KelvinOffset = 273.15

	earthRadiusKm  = 6369.0
	gmr            = 34.163195 // hydrostatic constant g0·M/R in K/km
	lapseRate      = 6.5       // K/km in the troposphere
	tropopauseKm   = 11.0
	tropopauseTemp = 216.65
	tropopauseDelt = 0.2233611

	// barometric formula constants for T·(1-(p/p0)^(R·L/g)) / L
	heightScale = 153.8462 // 1/L in m/K
	pressureExp = 0.190259 // R·L/g
)

// Ratios returns the density, pressure and temperature ratios (σ, δ, θ)
// relative to ISA sea level at the given geometric altitude in metres.
// Below 11 km the temperature falls linearly; above it is constant.
func Ratios(altitude float64) (sigma, delta, theta float64) {
	altKm := altitude / 1000
	h := altKm * earthRadiusKm / (altKm + earthRadiusKm) // geopotential altitude

	if h < tropopauseKm {
		theta = (SeaLevelTemperature - lapseRate*h) / SeaLevelTemperature
		delta = math.Pow(theta, gmr/lapseRate)
	} else {
		theta = tropopauseTemp / SeaLevelTemperature
		delta = tropopauseDelt * math.Exp(-gmr*(h-tropopauseKm)/tropopauseTemp)
	}
	sigma = delta / theta
	return sigma, delta, theta
}

// AltitudeDifference returns the height in metres of pressure above
// basePressure, for a ground temperature in degrees C. Within ±2.5 m of the
// standard tables below 11 km.
func AltitudeDifference(basePressure, pressure, groundTempC float64) float64 {
	tempK := groundTempC + KelvinOffset
	scaling := pressure / basePressure
	return heightScale * tempK * (1 - math.Exp(pressureExp*math.Log(scaling)))
}

// PressureAtDifference is the inverse of AltitudeDifference: the pressure
// found heightDiff metres above a reference at basePressure.
func PressureAtDifference(basePressure, heightDiff, groundTempC float64) float64 {
	tempK := groundTempC + KelvinOffset
	return basePressure * math.Exp(math.Log(1-heightDiff/(heightScale*tempK))/pressureExp)
}

// EAS2TAS returns the factor converting equivalent to true airspeed at the
// given altitude.
func EAS2TAS(altitude float64) float64 {
	sigma, _, _ := Ratios(altitude)
	if sigma <= 0 {
		return 1
	}
	return 1 / math.Sqrt(sigma)
}

// Conditions returns the ISA static pressure (Pa) and temperature (°C) at the
// given altitude.
func Conditions(altitude float64) (pressure, temperatureC float64) {
	_, delta, theta := Ratios(altitude)
	return SeaLevelPressure * delta, SeaLevelTemperature*theta - KelvinOffset
}
