package access

import (
	"context"

	"github.com/kailas-cloud/hybridex/internal/domain/auth"
)

// Store persists the allow-lists.
type Store interface {
	Load(ctx context.Context) (auth.AllowLists, bool, error)
	Save(ctx context.Context, lists auth.AllowLists) error
}
