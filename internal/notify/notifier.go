// Package notify pushes domain events to the live sessions of the users they
// are addressed to. Delivery is best-effort: an event for a user with no live
// session is dropped, and the persisted entity stays the source of truth.
package notify

import (
	"context"

	"marketplace-service/internal/models"
)

// Notifier delivers an event to every live session of userID.
// Implementations never report failure to the caller.
type Notifier interface {
	Notify(ctx context.Context, userID int64, event *models.Event)
}

// Nop discards every event
type Nop struct{}

func (Nop) Notify(context.Context, int64, *models.Event) {}
