// Package display renders listings, results and catalog summaries for the
// terminal. Styling goes through lipgloss and follows the color decision
// made by package term.
package display

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

const banner = `     _                                                        
  __| |_ __ __ _ _ __ ___   __ _ _ __ ___   ___ _ __ __ _  ___
 / _' | '__/ _' | '_ ' _ \ / _' | '_ ' _ \ / _ \ '__/ _' |/ _ \
| (_| | | | (_| | | | | | | (_| | | | | | |  __/ | | (_| |  __/
 \__,_|_|  \__,_|_| |_| |_|\__,_|_| |_| |_|\___|_|  \__, |\___|
                                                    |___/      `

var bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))

// PrintBanner writes the ASCII art banner to w.
func PrintBanner(w io.Writer) {
	fmt.Fprintln(w, bannerStyle.Render(banner))
}
