// Package localstore is the durable per-browser storage the storefront keeps on behalf of
// each session: the guest cart and the signed-in identity.
package localstore

import (
	"context"

	"github.com/pkg/errors"
)

// Fixed keys inside a session scope.
const (
	KeyCart = "cart"
	KeyUser = "user"
)

// ErrNotFound is returned by Get when the key was never written or has been deleted.
var ErrNotFound = errors.New("localstore: key not found")

// Storage holds opaque values per (scope, key). The scope is the browser session id.
// Last writer wins; there is no locking across callers.
type Storage interface {
	Get(ctx context.Context, scope, key string) ([]byte, error)
	Set(ctx context.Context, scope, key string, value []byte) error
	Delete(ctx context.Context, scope, key string) error
}
