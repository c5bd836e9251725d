package tui

import (
	"context"
	"fmt"
	"io"
	"time"
)

// RunHeadless writes the plain-text table to out every interval until src is
// done or ctx ends. Intervals with no recorded call are skipped.
func RunHeadless(ctx context.Context, src Source, out io.Writer, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	write := func(now time.Time) error {
		f := Capture(src, now)
		if f.Snapshot.Empty() {
			return nil
		}
		if _, err := fmt.Fprintf(out, "%s\n", RenderTable(f)); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-src.Done():
			return write(time.Now())
		case now := <-ticker.C:
			if err := write(now); err != nil {
				return err
			}
		}
	}
}
