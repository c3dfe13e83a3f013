package queue

import "context"

// Repository is the durable journal of queue entries and consultation
// averages. Writes happen after the queue lock is released.
type Repository interface {
	UpsertEntry(ctx context.Context, e Entry) error
	ListActiveEntries(ctx context.Context) ([]Entry, error)
	UpsertStats(ctx context.Context, s Stats) error
	ListStats(ctx context.Context) ([]Stats, error)
}
