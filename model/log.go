package model

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// LoggerOrDiscard returns l, or a logger that writes nowhere when l is nil.
func LoggerOrDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	if l != nil {
		return l
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return discard
}

// ClockOrNow returns now, or time.Now when now is nil.
func ClockOrNow(now func() time.Time) func() time.Time {
	if now != nil {
		return now
	}
	return func() time.Time { return time.Now().UTC() }
}
