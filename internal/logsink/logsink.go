// Package logsink is the log/alert transport collaborator named in spec
// section 6. Its Alert shape is carried over from the teacher's SIEM
// integration (sentra/internal/siem: LogEntry/Alert), trimmed down from a
// full correlation engine to the single thing the miner needs: a title,
// link, color, and text, plus a bounded history for observability.
package logsink

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Alert mirrors the collaborator interface from spec section 6:
// alert(title, link, color, text).
type Alert struct {
	Title     string
	Link      string
	Color     string
	Text      string
	Timestamp time.Time
}

// Logger is the collaborator interface the core depends on.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Alert(title, link, color, text string)
}

const maxAlertHistory = 200

// StderrLogger writes leveled lines to stderr and keeps a ring buffer of
// recent alerts, the way siem.SIEMIntegration keeps alerts []Alert in
// memory for later inspection.
type StderrLogger struct {
	mu     sync.Mutex
	alerts []Alert
	debug  bool
}

// NewStderrLogger creates a Logger. debug enables Debug-level output.
func NewStderrLogger(debug bool) *StderrLogger {
	return &StderrLogger{debug: debug}
}

func (l *StderrLogger) write(level, format string, args ...interface{}) {
	ts := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(os.Stderr, "%s [%s] %s\n", ts, level, fmt.Sprintf(format, args...))
}

func (l *StderrLogger) Debug(format string, args ...interface{}) {
	if l.debug {
		l.write("DEBUG", format, args...)
	}
}

func (l *StderrLogger) Info(format string, args ...interface{}) { l.write("INFO", format, args...) }
func (l *StderrLogger) Warn(format string, args ...interface{}) { l.write("WARN", format, args...) }
func (l *StderrLogger) Error(format string, args ...interface{}) {
	l.write("ERROR", format, args...)
}

// Alert records a titled notification and logs it at ALERT level.
func (l *StderrLogger) Alert(title, link, color, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := Alert{Title: title, Link: link, Color: color, Text: text, Timestamp: time.Now()}
	l.alerts = append(l.alerts, a)
	if len(l.alerts) > maxAlertHistory {
		l.alerts = l.alerts[len(l.alerts)-maxAlertHistory:]
	}
	l.write("ALERT", "%s: %s (%s)", title, text, link)
}

// RecentAlerts returns a copy of the retained alert history, most recent
// last.
func (l *StderrLogger) RecentAlerts() []Alert {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Alert, len(l.alerts))
	copy(out, l.alerts)
	return out
}

// FormatCount renders a program/sequence count the way the miner's progress
// line does, e.g. "12,345" for 12345, via humanize.Comma grouping.
func FormatCount(n int64) string {
	return humanize.Comma(n)
}

// FormatDuration renders an elapsed duration in the miner's progress log.
func FormatDuration(d time.Duration) string {
	return humanize.RelTime(time.Now().Add(-d), time.Now(), "", "")
}
