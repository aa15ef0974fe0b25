package ui

import (
	"context"
	"fmt"
	"time"
)

// Braille spinner animation frames
var spinnerFrames = []rune{'⠋', '⠙', '⠹', '⠸', '⠼', '⠴', '⠦', '⠧', '⠇', '⠏'}

// ANSI cursor control
const (
	cursorStart = "\r"
	clearLine   = "\033[2K"
)

// SpinnerConfig holds configuration for a spinner display
type SpinnerConfig struct {
	Message     string        // Main message (e.g., "Rate limited")
	Reason      string        // Reason for waiting
	Duration    time.Duration // Total wait duration
	Attempt     int           // Current attempt number (1-based)
	MaxAttempts int           // Maximum number of attempts
}

// Spinner provides animated feedback on the error stream while the
// agent waits.
type Spinner struct {
	output *OutputHandler
}

// NewSpinner creates a new spinner attached to an output handler
func NewSpinner(output *OutputHandler) *Spinner {
	return &Spinner{output: output}
}

// Start displays a spinner with countdown until duration elapses or context is cancelled.
// It blocks until complete.
func (s *Spinner) Start(ctx context.Context, cfg SpinnerConfig) error {
	// No spinner for very short waits
	if cfg.Duration < 500*time.Millisecond {
		return wait(ctx, cfg.Duration)
	}
	if !s.output.IsTTY() {
		fmt.Fprintln(s.output.errOut, staticLine(cfg))
		return wait(ctx, cfg.Duration)
	}
	return s.animatedWait(ctx, cfg)
}

// staticLine is the single line printed for non-TTY output, e.g.
// "ℹ Rate limited: waiting 45s (retry 2/5, rate limited by provider)".
func staticLine(cfg SpinnerConfig) string {
	msg := fmt.Sprintf("ℹ %s: waiting %s", cfg.Message, formatDuration(cfg.Duration))
	switch {
	case cfg.MaxAttempts > 0 && cfg.Reason != "":
		msg += fmt.Sprintf(" (retry %d/%d, %s)", cfg.Attempt, cfg.MaxAttempts, cfg.Reason)
	case cfg.MaxAttempts > 0:
		msg += fmt.Sprintf(" (retry %d/%d)", cfg.Attempt, cfg.MaxAttempts)
	case cfg.Reason != "":
		msg += fmt.Sprintf(" (%s)", cfg.Reason)
	}
	return msg
}

// animatedWait displays an animated spinner with countdown (for TTY mode)
func (s *Spinner) animatedWait(ctx context.Context, cfg SpinnerConfig) error {
	start := time.Now()
	frame := 0
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	defer fmt.Fprint(s.output.errOut, clearLine+cursorStart)

	for {
		remaining := max(cfg.Duration-time.Since(start), 0)
		fmt.Fprint(s.output.errOut, clearLine+cursorStart+s.statusLine(spinnerFrames[frame], cfg, remaining))
		if remaining == 0 {
			return nil
		}

		select {
		case <-ticker.C:
			frame = (frame + 1) % len(spinnerFrames)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// statusLine builds "⠹ Rate limited | Retry 2/5 | reason | 45s remaining".
func (s *Spinner) statusLine(frame rune, cfg SpinnerConfig, remaining time.Duration) string {
	sep := s.output.style(dimStyle, " | ")
	line := s.output.style(spinnerStyle, string(frame)) + " " + s.output.style(waitStyle, cfg.Message)
	if cfg.MaxAttempts > 0 {
		line += sep + fmt.Sprintf("Retry %d/%d", cfg.Attempt, cfg.MaxAttempts)
	}
	if cfg.Reason != "" {
		line += sep + cfg.Reason
	}
	return line + sep + s.output.style(headerStyle.Underline(false), formatDuration(remaining)+" remaining")
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// formatDuration formats a duration for display (45s, 1m30s, 5m00s)
func formatDuration(d time.Duration) string {
	d = max(d.Round(time.Second), 0)

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	if minutes == 0 {
		return fmt.Sprintf("%ds", seconds)
	}
	return fmt.Sprintf("%dm%02ds", minutes, seconds)
}
