package report

import "github.com/fatih/color"

// Scale maps a numeric reading onto a color by comparing it against
// ordered band boundaries. Colors has one more entry than Bounds; the
// value picks the color of the first band it falls under.
type Scale struct {
	Bounds []int
	Colors []*color.Color
}

func (s Scale) Pick(v int) *color.Color {
	for i, b := range s.Bounds {
		if v < b {
			return s.Colors[i]
		}
	}
	return s.Colors[len(s.Bounds)]
}

func (s Scale) Sprintf(v int, format string, a ...any) string {
	return s.Pick(v).Sprintf(format, a...)
}

var (
	indexColor = color.New(color.FgCyan)
	nameColor  = color.New(color.FgBlue)
	userColor  = color.New(color.FgYellow)
	codecColor = color.New(color.FgHiCyan)

	tempScale = Scale{
		Bounds: []int{50, 80},
		Colors: []*color.Color{
			color.New(color.FgGreen),
			color.New(color.FgYellow),
			color.New(color.FgRed, color.Bold),
		},
	}
	utilScale = Scale{
		Bounds: []int{30, 70},
		Colors: []*color.Color{
			color.New(color.FgGreen),
			color.New(color.FgYellow),
			color.New(color.FgRed, color.Bold),
		},
	}
	fanScale = Scale{
		Bounds: []int{50},
		Colors: []*color.Color{
			color.New(color.FgMagenta),
			color.New(color.FgMagenta, color.Bold),
		},
	}
	// Percent of capacity, for memory and power draw.
	capacityScale = Scale{
		Bounds: []int{50, 90},
		Colors: []*color.Color{
			color.New(color.FgYellow),
			color.New(color.FgYellow, color.Bold),
			color.New(color.FgRed, color.Bold),
		},
	}
)
