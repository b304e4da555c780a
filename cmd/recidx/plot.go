package main

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// renderLatencyChart draws one bar per (engine, operation) pair so the
// engines can be compared at a glance.
func renderLatencyChart(path string, results []benchResult) error {
	p := plot.New()
	p.Title.Text = "Per-operation latency"
	p.Y.Label.Text = "ns/op"

	vals := make(plotter.Values, 0, len(results))
	labels := make([]string, 0, len(results))
	for _, r := range results {
		vals = append(vals, float64(r.LatencyNs))
		labels = append(labels, r.Name+"\n"+r.Operation)
	}

	bars, err := plotter.NewBarChart(vals, vg.Points(24))
	if err != nil {
		return err
	}
	p.Add(bars)
	p.NominalX(labels...)

	return p.Save(10*vg.Inch, 4*vg.Inch, path)
}
