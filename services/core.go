package services

import (
	"github.com/GoBucketStore/go-bucket-store/models"
)

// BucketStoreService is the public operation surface over bucket storage.
// It layers input validation, quota gating and change events on top of the
// atomic persistence operations.
type BucketStoreService interface {
	models.BucketStorage
}

type CoreServices struct {
	BucketStoreService BucketStoreService
}
