// Package console is a terminal front end for the weather presenter.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/i474232898/weather-lookup/internal/weather"
)

// View prints presenter output as plain text. Like any presenter view it must
// only be used from the UI loop.
type View struct {
	out      io.Writer
	loading  bool
	searches []weather.Search
}

func NewView(out io.Writer) *View {
	return &View{out: out}
}

func (v *View) SetLoadingIndicator(active bool) {
	if active && !v.loading {
		fmt.Fprintln(v.out, "Looking up weather...")
	}
	v.loading = active
}

func (v *View) ShowWeather(w *weather.Weather, animate bool) {
	title := w.Place
	if title == "" {
		title = w.Search.String()
	}
	if !animate {
		title += " (last result)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n%s\n", title, strings.Repeat("-", len(title)))
	fmt.Fprintf(&b, "  %-12s %s\n", "Conditions", w.Condition)
	fmt.Fprintf(&b, "  %-12s %.1f °C\n", "Temperature", w.Temperature)
	fmt.Fprintf(&b, "  %-12s %.0f %%\n", "Humidity", w.Humidity)
	fmt.Fprintf(&b, "  %-12s %.1f m/s\n", "Wind", w.WindSpeed)
	if w.Pressure > 0 {
		fmt.Fprintf(&b, "  %-12s %.0f hPa\n", "Pressure", w.Pressure)
	}
	if w.PrecipMM > 0 {
		fmt.Fprintf(&b, "  %-12s %.1f mm\n", "Precip", w.PrecipMM)
	}
	if n := len(w.Providers); n > 0 {
		names := make([]string, 0, n)
		for _, p := range w.Providers {
			names = append(names, p.ProviderName)
		}
		fmt.Fprintf(&b, "  %-12s %s\n", "Sources", strings.Join(names, ", "))
	}
	io.WriteString(v.out, b.String())
}

func (v *View) ShowEmptyWeather() {
	fmt.Fprintln(v.out, "No weather to show.")
}

func (v *View) ShowError(message string) {
	fmt.Fprintf(v.out, "Error: %s\n", message)
}

func (v *View) PopulateRecentSearches(searches []weather.Search) {
	v.searches = append(v.searches[:0], searches...)
	if len(searches) == 0 {
		fmt.Fprintln(v.out, "No recent searches.")
		return
	}
	fmt.Fprintln(v.out, "Recent searches:")
	for i, s := range searches {
		fmt.Fprintf(v.out, "  %d) %s\n", i+1, s)
	}
}

// RecentSearch returns the entry listed at 1-based position n.
func (v *View) RecentSearch(n int) (weather.Search, bool) {
	if n < 1 || n > len(v.searches) {
		return weather.Search{}, false
	}
	return v.searches[n-1], true
}
