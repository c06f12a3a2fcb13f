// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"net/http"
	"time"

	"github.com/artpar/modelwire/core/query"
	"github.com/artpar/modelwire/core/schema"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher provides one-way hashing of secret attributes.
type Hasher interface {
	// Hash generates a hash from a plaintext value.
	Hash(plaintext string) ([]byte, error)

	// Compare checks if plaintext matches hash.
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// HTTP Application Port
// -----------------------------------------------------------------------------

// App is the host HTTP application routes are registered on.
// Implementations must be safe for concurrent registration.
type App interface {
	// Mount attaches h under prefix; h sees every request below it.
	Mount(prefix string, h http.Handler)

	// Method registers h for an exact method and path pattern.
	// Path parameters use the "{name}" form.
	Method(method, pattern string, h http.Handler)
}

// -----------------------------------------------------------------------------
// Data Layer Port
// -----------------------------------------------------------------------------

// Adapter stores the records of the collections defined on it.
// Where clauses follow query.Matches: nil matches everything, a slice matches
// primary keys, a map matches fields.
type Adapter interface {
	// Define prepares storage for a model. Calling it again replaces the
	// definition and keeps existing records.
	Define(ctx context.Context, model schema.Model) error

	// Find returns the records matching q, sorted and windowed.
	Find(ctx context.Context, collection string, q query.Query) ([]query.Record, error)

	// Create stores a record and returns it as stored.
	Create(ctx context.Context, collection string, values query.Record) (query.Record, error)

	// Update applies values to every matching record and returns them.
	Update(ctx context.Context, collection string, where any, values query.Record) ([]query.Record, error)

	// Destroy removes every matching record and returns them.
	Destroy(ctx context.Context, collection string, where any) ([]query.Record, error)

	// Count returns the number of matching records.
	Count(ctx context.Context, collection string, where any) (int, error)

	// Close releases any resources held.
	Close() error
}
