package output

import "github.com/fatih/color"

// palette holds the colors used by the console output.
type palette struct {
	Title   *color.Color
	Border  *color.Color
	Dim     *color.Color
	Good    *color.Color
	Warn    *color.Color
	Bad     *color.Color
	Value   *color.Color
	Latency *color.Color
	Phase   *color.Color
}

func newPalette(enabled bool) *palette {
	p := &palette{
		Title:   color.New(color.Bold),
		Border:  color.New(color.FgCyan),
		Dim:     color.New(color.Faint),
		Good:    color.New(color.FgGreen),
		Warn:    color.New(color.FgYellow),
		Bad:     color.New(color.FgRed),
		Value:   color.New(color.FgCyan),
		Latency: color.New(color.FgBlue),
		Phase:   color.New(color.FgMagenta),
	}

	for _, c := range p.all() {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p *palette) all() []*color.Color {
	return []*color.Color{p.Title, p.Border, p.Dim, p.Good, p.Warn, p.Bad, p.Value, p.Latency, p.Phase}
}

// rate picks good, warn or bad for an error rate.
func (p *palette) rate(errorRate float64) *color.Color {
	switch {
	case errorRate > 0.05:
		return p.Bad
	case errorRate > 0.01:
		return p.Warn
	default:
		return p.Good
	}
}

func (p *palette) mark(passed bool) string {
	if passed {
		return p.Good.Sprint("✓")
	}
	return p.Bad.Sprint("✗")
}
