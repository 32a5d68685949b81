package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
)

// AckRatio tracks the share of counter writes the peer acknowledged.
type AckRatio struct {
	progress progress.Model
	acked    int
	total    int
}

func NewAckRatio() AckRatio {
	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)
	return AckRatio{progress: p}
}

// Record counts one write attempt.
func (a *AckRatio) Record(acked bool) {
	a.total++
	if acked {
		a.acked++
	}
}

// Percent returns the acknowledged share in [0, 1]. No writes yet is 0.
func (a AckRatio) Percent() float64 {
	if a.total == 0 {
		return 0
	}
	return float64(a.acked) / float64(a.total)
}

// View renders the ratio bar with its numbers.
func (a AckRatio) View() string {
	if a.total == 0 {
		return ""
	}
	return a.progress.ViewAs(a.Percent()) + fmt.Sprintf(" %d/%d acked", a.acked, a.total)
}
