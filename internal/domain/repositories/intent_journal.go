package repositories

import (
	"context"

	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
)

// IntentJournal is an append-only audit log of terminal intents
type IntentJournal interface {
	// Append records a terminal intent. Appending the same id twice is a no-op.
	Append(ctx context.Context, intent *entities.Intent) error

	// ListByIdentity returns journaled intents for identity, most recent first
	ListByIdentity(ctx context.Context, identity string, limit, offset int) ([]*entities.Intent, error)

	// CountByIdentity returns the number of journaled intents for identity
	CountByIdentity(ctx context.Context, identity string) (int64, error)
}
