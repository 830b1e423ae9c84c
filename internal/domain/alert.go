package domain

import "context"

// Alerter raises operator alerts for events that need a human.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}
