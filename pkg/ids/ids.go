// Package ids generates the identifiers the runtime threads through
// requests, sessions, and subscriptions.
package ids

import "github.com/google/uuid"

// NewRequestID returns a fresh request correlation ID.
func NewRequestID() string {
	return uuid.NewString()
}

// NewSessionID returns a fresh session ID.
func NewSessionID() string {
	return uuid.NewString()
}

// NewSubscriptionID returns a fresh resource-subscription ID.
func NewSubscriptionID() string {
	return uuid.NewString()
}

// NewProgressToken returns a fresh progress-notification correlation token.
func NewProgressToken() string {
	return uuid.NewString()
}
