package repositories

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/GoBucketStore/go-bucket-store/models"
)

// BucketRepository is the persistence surface of the bucket store. It adds
// maintenance operations on top of the public BucketStorage contract.
type BucketRepository interface {
	models.BucketStorage

	// DeleteExpired physically removes up to limit expired rows and
	// reports how many were reclaimed. Expired rows are already invisible
	// to every other operation; this only frees storage.
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error)

	WithTx(tx bun.IDB) BucketRepository
}
