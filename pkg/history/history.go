package history

import "context"

// History is the storage capability a line editor uses to persist and query
// executed commands.
type History[T any] interface {
	// Save inserts an item without ID and returns it with the assigned ID.
	// An item with ID replaces every field of the stored item.
	Save(ctx context.Context, item Item[T]) (Item[T], error)

	// Load returns the item with the given ID.
	Load(ctx context.Context, id ItemID) (Item[T], error)

	// Count returns how many items Search would match, ignoring the limit.
	Count(ctx context.Context, query SearchQuery) (int64, error)

	// Search returns matching items ordered by ID in the query's direction.
	Search(ctx context.Context, query SearchQuery) ([]Item[T], error)

	// Update loads the item, applies fn and stores the result under the same ID.
	Update(ctx context.Context, id ItemID, fn func(Item[T]) Item[T]) error

	// Delete removes the item with the given ID.
	Delete(ctx context.Context, id ItemID) error

	// NewSessionID allocates a session ID greater than any seen before.
	NewSessionID(ctx context.Context) (SessionID, error)

	// Sync flushes buffered state to durable storage.
	Sync(ctx context.Context) error
}

var _ History[Anything] = (*SQLiteBacked[Anything])(nil)
