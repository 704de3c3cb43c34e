package outwriter

import (
	"os"

	"github.com/huangsam/codepulse/internal/contract"
	"golang.org/x/term"
)

// GetMaxTablePathWidth calculates the maximum width for paths in table output
// based on terminal width and the fixed metric columns.
func GetMaxTablePathWidth(cfg *contract.Config) int {
	termWidth := cfg.Width
	if termWidth <= 0 {
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			// Fallback to conservative default if terminal size can't be detected
			termWidth = 80
		} else {
			termWidth = detectedWidth
		}
	}

	// Rank, Cyclo, Cog, Churn, Score and Tier with borders/padding
	baseWidth := 55
	// Owner column
	baseWidth += 25
	// Table borders, separators, and padding
	baseWidth += 20

	available := termWidth - baseWidth
	if available < 15 {
		return 15
	}
	if available > 70 {
		return 70
	}
	return available
}
