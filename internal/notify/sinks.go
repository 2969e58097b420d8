package notify

import (
	"unicode/utf8"

	"github.com/gen2brain/beeep"

	"github.com/s3transfer/transferctl/internal/logging"
)

// ConsoleSink writes notifications to the structured log.
type ConsoleSink struct {
	logger *logging.Logger
}

// NewConsoleSink creates a sink logging through logger.
func NewConsoleSink(logger *logging.Logger) *ConsoleSink {
	return &ConsoleSink{logger: logger}
}

func (c *ConsoleSink) Show(m Message) {
	switch m.Severity {
	case SeverityError:
		c.logger.Error().Str("severity", m.Severity.String()).Msg(m.Text)
	case SeverityWarning:
		c.logger.Warn().Str("severity", m.Severity.String()).Msg(m.Text)
	default:
		c.logger.Info().Str("severity", m.Severity.String()).Msg(m.Text)
	}
}

func (c *ConsoleSink) Hide() {
	c.logger.Debug().Msg("notification dismissed")
}

// DesktopSink raises OS notifications for successes and errors. Info and
// warning messages stay in the terminal.
// It uses github.com/gen2brain/beeep:
//   - Windows: toast notifications
//   - macOS: NSUserNotificationCenter
//   - Linux: D-Bus notifications
type DesktopSink struct {
	logger *logging.Logger
	title  string
	notify func(title, message string) error
	alert  func(title, message string) error
}

// NewDesktopSink creates a desktop notification sink.
func NewDesktopSink(logger *logging.Logger) *DesktopSink {
	return &DesktopSink{
		logger: logger,
		title:  "transferctl",
		notify: func(title, message string) error { return beeep.Notify(title, message, "") },
		alert:  func(title, message string) error { return beeep.Alert(title, message, "") },
	}
}

func (d *DesktopSink) Show(m Message) {
	var err error
	switch m.Severity {
	case SeveritySuccess:
		err = d.notify(d.title, truncate(m.Text, 200))
	case SeverityError:
		// Alert is more prominent on some platforms; fall back to a plain notification.
		if err = d.alert(d.title, truncate(m.Text, 200)); err != nil {
			err = d.notify(d.title, truncate(m.Text, 200))
		}
	default:
		return
	}
	if err != nil {
		d.logger.Warn().Err(err).Str("severity", m.Severity.String()).Msg("Failed to send desktop notification")
	}
}

// Hide is a no-op: the OS owns the lifetime of desktop notifications.
func (d *DesktopSink) Hide() {}

// truncate shortens a string to at most maxLen bytes, adding "..." if
// truncated. The cut never splits a UTF-8 sequence.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
