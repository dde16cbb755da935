package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const barWidth = 30

// Bar renders a percentage as a fixed-width bar.
func Bar(percent int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * barWidth / 100
	return fmt.Sprintf("[%s%s] %3d%%", strings.Repeat("█", filled), strings.Repeat("░", barWidth-filled), percent)
}

// StartProgress redraws message and a bar on w until stopped. percent is
// polled on every frame. Call the returned function to stop and clear the line.
func StartProgress(w io.Writer, message string, percent func() int) (stop func()) {
	done := make(chan struct{})
	cleared := make(chan struct{})
	var stopOnce sync.Once
	go func() {
		i := 0
		width := 0
		for {
			select {
			case <-done:
				fmt.Fprintf(w, "\r%s\r", strings.Repeat(" ", width)) //nolint:errcheck
				close(cleared)
				return
			case <-time.After(80 * time.Millisecond):
				line := fmt.Sprintf("%s %s %s", frames[i%len(frames)], message, Bar(percent()))
				if n := len([]rune(line)); n > width {
					width = n
				}
				fmt.Fprintf(w, "\r%s", line) //nolint:errcheck
				i++
			}
		}
	}()
	return func() {
		stopOnce.Do(func() {
			close(done)
		})
		<-cleared
	}
}
