package progress

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

const defaultTermWidth = 80

// Bar renders a percent-based progress bar with a trailing status label.
// It is fed from the converter's progress callback, which reports an
// approximate percentage and a short status string.
type Bar struct {
	mu sync.Mutex

	message string
	percent int
	status  string
}

func NewBar(message string) *Bar {
	return &Bar{message: message}
}

// Set updates the bar. It matches convert.ProgressFunc and is safe to
// call from the conversion goroutine.
func (b *Bar) Set(percent int, status string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.percent = min(max(percent, 0), 100)
	b.status = status
}

// Percent returns the last reported percentage.
func (b *Bar) Percent() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.percent
}

func (b *Bar) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	termWidth, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil {
		termWidth = defaultTermWidth
	}

	prefix := b.message + " "
	suffix := fmt.Sprintf(" %3d%% %s", b.percent, b.status)

	barWidth := termWidth - len(prefix) - len(suffix) - 2
	if barWidth < 10 {
		barWidth = 10
	}

	filled := barWidth * b.percent / 100

	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString("▕")
	sb.WriteString(strings.Repeat("█", filled))
	sb.WriteString(strings.Repeat(" ", barWidth-filled))
	sb.WriteString("▏")
	sb.WriteString(suffix)

	return sb.String()
}
