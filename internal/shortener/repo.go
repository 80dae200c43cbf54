package shortener

import "context"

// LinkRepository defines the persistence operations for Link entities.
// Create must enforce code uniqueness atomically at the storage layer;
// callers never pre-check.
type LinkRepository interface {
	Create(ctx context.Context, link Link) (Link, error)
	GetByCode(ctx context.Context, code string) (Link, error)
	Delete(ctx context.Context, code string) error
	ListAll(ctx context.Context) ([]LinkStats, error)
}

// ClickRepository defines the persistence operations for ClickEvent
// entities. Record is best-effort append-only and performs no referential
// check against the links table.
type ClickRepository interface {
	Record(ctx context.Context, code string) error
	CountFor(ctx context.Context, code string) (int64, error)
	DeleteAllFor(ctx context.Context, code string) error
}
