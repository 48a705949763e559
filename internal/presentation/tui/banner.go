package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner for Canopy.
func PrintBanner(version string) {
	p := termenv.ColorProfile()
	// Leaf-green gradient, light to dark
	s1 := termenv.String("   ___ __ _ _ __   ___  _ __  _   _ ").Foreground(p.Color("#86efac"))
	s2 := termenv.String("  / __/ _` | '_ \\ / _ \\| '_ \\| | | |").Foreground(p.Color("#4ade80"))
	s3 := termenv.String(" | (_| (_| | | | | (_) | |_) | |_| |").Foreground(p.Color("#22c55e"))
	s4 := termenv.String("  \\___\\__,_|_| |_|\\___/| .__/ \\__, |").Foreground(p.Color("#16a34a"))
	s5 := termenv.String("                       |_|    |___/ ").Foreground(p.Color("#15803d"))
	v := termenv.String("  one tree, one writer  |  " + version).Faint()

	fmt.Println()
	fmt.Println(s1)
	fmt.Println(s2)
	fmt.Println(s3)
	fmt.Println(s4)
	fmt.Println(s5)
	fmt.Println(v)
	fmt.Println()
}
