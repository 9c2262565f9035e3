// Package plot renders recorded transient traces as PNG line charts.
package plot

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const (
	width  = 8 * vg.Inch
	height = 4 * vg.Inch
)

// TraceNames returns the result keys starting with prefix, sorted.
func TraceNames(results map[string][]float64, prefix string) []string {
	var names []string
	for name := range results {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Render draws every trace whose name starts with prefix against TIME.
func Render(w io.Writer, results map[string][]float64, prefix, title, unit string) error {
	times, ok := results["TIME"]
	if !ok || len(times) == 0 {
		return fmt.Errorf("no time points recorded")
	}
	names := TraceNames(results, prefix)
	if len(names) == 0 {
		return fmt.Errorf("no traces with prefix %q", prefix)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = unit
	p.Add(plotter.NewGrid())
	p.Legend.Top = true

	for i, name := range names {
		values := results[name]
		pts := make(plotter.XYs, min(len(times), len(values)))
		for j := range pts {
			pts[j].X = times[j]
			pts[j].Y = values[j]
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("trace %s: %w", name, err)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i / len(plotutil.DefaultColors))
		p.Add(line)
		p.Legend.Add(name, line)
	}

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// Save writes node voltages to path and device currents next to it with an
// "_i" suffix.
func Save(path string, results map[string][]float64, title string) error {
	if err := saveFile(path, results, "V(", title+" voltages", "V"); err != nil {
		return err
	}

	ext := ".png"
	base := strings.TrimSuffix(path, ext)
	return saveFile(base+"_i"+ext, results, "I(", title+" currents", "A")
}

func saveFile(path string, results map[string][]float64, prefix, title, unit string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Render(f, results, prefix, title, unit); err != nil {
		f.Close()
		return fmt.Errorf("rendering %s: %w", path, err)
	}
	return f.Close()
}
