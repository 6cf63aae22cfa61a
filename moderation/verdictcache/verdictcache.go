// Verdict caching for the moderation engine.
//
// Verdicts are stored as JSON strings keyed by a content hash, namespaced by
// task (text, image). Includes an interface and implementations using redis
// and in-process memory; identical inputs within the TTL skip the classifier
// cascade entirely.
package verdictcache

import (
	"context"
)

// Store caches serialized verdicts. Get returns ok=false on a miss; a miss
// is not an error.
type Store interface {
	Get(ctx context.Context, name, key string) (string, bool, error)
	Set(ctx context.Context, name, key, val string) error
}
