// Package service holds the application services of the approval workflow:
// route resolution, the application-code catalog, the decision processor and
// the query views.
package service

import (
	"time"

	"github.com/google/uuid"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

func newID() string {
	return uuid.NewString()
}
