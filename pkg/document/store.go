package document

import "context"

// Store persists and retrieves documents. Implementations must make Save
// durable before returning nil, and Load must never return a document
// with a stale ActiveUsers map (presence is transient and is reset on
// load).
type Store interface {
	// Load returns the document for id, or ok=false if none exists.
	Load(ctx context.Context, id string) (doc *Document, ok bool, err error)
	// Save durably persists doc, overwriting any prior revision.
	Save(ctx context.Context, doc *Document) error
	// Delete removes a document's persisted state, if any.
	Delete(ctx context.Context, id string) error
	// Count returns the number of documents currently persisted.
	Count(ctx context.Context) (int, error)
	// IDs lists every persisted document id, for the expiry sweep.
	IDs(ctx context.Context) ([]string, error)
	// Close releases any resources held by the store.
	Close() error
}
