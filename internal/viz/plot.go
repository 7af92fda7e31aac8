package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/guptarohit/asciigraph"
)

// PlotSeries renders one metric history as an ASCII line chart.
func PlotSeries(name string, data []float64, width, height int) string {
	finite := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return fmt.Sprintf("%s: no data\n", name)
	}
	return asciigraph.Plot(finite,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(name),
	) + "\n"
}

// PlotMetrics renders every metric history in name order.
func PlotMetrics(history map[string][]float64, width, height int) string {
	names := make([]string, 0, len(history))
	for k := range history {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, n := range names {
		b.WriteString(PlotSeries(n, history[n], width, height))
		b.WriteByte('\n')
	}
	return b.String()
}
