package journal

import "context"

// Store is the order journal contract consumed by the ladder engine.
//
// LiveOrders returns non-processed records for a purpose+pair+exchange,
// ordered by side then ladder index. Save is a whole-record atomic write
// (insert or replace by ID). Update is a partial rewrite of an existing
// record; flush requests an immediate durability barrier where the backend
// supports one. No cross-record transactional guarantees are required: the
// engine re-establishes correctness on every iteration.
type Store interface {
	LiveOrders(ctx context.Context, purpose, pair, exchange string) ([]*OrderRecord, error)
	Save(ctx context.Context, rec *OrderRecord) error
	Update(ctx context.Context, rec *OrderRecord, flush bool) error
	Close() error
}
