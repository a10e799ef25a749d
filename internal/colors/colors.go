// Package colors holds the palette used by the report renderer.
//
// Colors are disabled when stdout is not a terminal; fatih/color detects that
// on its own. Init overrides the detection from the --color flag.
package colors

import "github.com/fatih/color"

// Init overrides the auto-detected color setting. A nil forceColor keeps it.
func Init(forceColor *bool) {
	if forceColor != nil {
		color.NoColor = !*forceColor
	}
}

// Enabled returns true if colors are currently enabled.
func Enabled() bool {
	return !color.NoColor
}

func Bold() *color.Color       { return color.New(color.Bold) }
func Faint() *color.Color      { return color.New(color.Faint) }
func Green() *color.Color      { return color.New(color.FgGreen) }
func HiYellow() *color.Color   { return color.New(color.FgHiYellow) }
func BoldRed() *color.Color    { return color.New(color.Bold, color.FgRed) }
func BoldHiBlue() *color.Color { return color.New(color.Bold, color.FgHiBlue) }
func FaintCyan() *color.Color  { return color.New(color.Faint, color.FgCyan) }
func Magenta() *color.Color    { return color.New(color.FgMagenta) }

// Report roles
var (
	Title   = BoldHiBlue().SprintFunc()
	Label   = Bold().SprintFunc()
	Offset  = Faint().SprintfFunc()
	Command = Green().SprintFunc()
	Segment = Magenta().SprintFunc()
	Flags   = FaintCyan().SprintFunc()
	Warning = HiYellow().SprintFunc()
	Invalid = BoldRed().SprintFunc()
)
