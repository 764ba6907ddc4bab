package session

import "math"

// Air change rates per hour for the three airflow modes. The device
// reports its configured installation volume but never the resulting
// flow rates; the phone app derives them with these constants.
const (
	AirChangesLow    = 0.36
	AirChangesMedium = 0.45
	AirChangesHigh   = 0.55
)

// AirflowRates holds the derived airflow in m³/h per mode.
type AirflowRates struct {
	Low    int
	Medium int
	High   int
}

// RatesFor derives the per-mode airflow rates from the installation
// volume in m³, rounding to the nearest integer.
func RatesFor(volume int) AirflowRates {
	rate := func(ach float64) int {
		return int(math.Round(float64(volume) * ach))
	}
	return AirflowRates{
		Low:    rate(AirChangesLow),
		Medium: rate(AirChangesMedium),
		High:   rate(AirChangesHigh),
	}
}
