package weather

import (
	"sort"
	"time"
)

// AggregateReadings combines multiple provider readings into a single Weather.
// Numeric fields are averaged; the condition is the majority vote, ties going
// to the condition reported by the earliest reading.
func AggregateReadings(s Search, readings []ProviderReading) Weather {
	if len(readings) == 0 {
		return Weather{
			Search:    s,
			Timestamp: time.Now().UTC(),
			Condition: ConditionUnknown,
		}
	}

	// Stable provider order keeps the tie-break deterministic regardless of
	// which goroutine finished first.
	sorted := make([]ProviderReading, len(readings))
	copy(sorted, readings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ProviderName < sorted[j].ProviderName
	})

	var (
		sumTemp     float64
		sumHumidity float64
		sumWind     float64
		sumPressure float64
		sumPrecip   float64
	)

	conditionCounts := make(map[Condition]int)
	providers := make([]ProviderContribution, 0, len(sorted))
	var newestTS time.Time
	place := ""

	for _, r := range sorted {
		sumTemp += r.TemperatureC
		sumHumidity += r.HumidityPct
		sumWind += r.WindSpeedMS
		sumPressure += r.PressureHpa
		sumPrecip += r.PrecipMm

		conditionCounts[r.Condition]++

		if r.Timestamp.After(newestTS) {
			newestTS = r.Timestamp
		}
		if place == "" {
			place = r.Place
		}

		providers = append(providers, ProviderContribution{
			ProviderName: r.ProviderName,
			Timestamp:    r.Timestamp,
		})
	}

	n := float64(len(sorted))

	// Pick majority condition.
	bestCond := ConditionUnknown
	bestCount := 0
	for _, r := range sorted {
		if count := conditionCounts[r.Condition]; count > bestCount {
			bestCount = count
			bestCond = r.Condition
		}
	}

	if newestTS.IsZero() {
		newestTS = time.Now().UTC()
	}

	return Weather{
		Search:      s,
		Place:       place,
		Timestamp:   newestTS,
		Temperature: sumTemp / n,
		Humidity:    sumHumidity / n,
		WindSpeed:   sumWind / n,
		Pressure:    sumPressure / n,
		PrecipMM:    sumPrecip / n,
		Condition:   bestCond,
		Providers:   providers,
	}
}
