package models

import "errors"

var (
	// ErrGuildStorageLimitReached is returned when a write would push a
	// guild past its storage budget.
	ErrGuildStorageLimitReached = errors.New("guild storage limit reached")

	// ErrCorruptEntry marks a stored row carrying neither a JSON document
	// nor a float value.
	ErrCorruptEntry = errors.New("entry has neither json nor float value")

	// ErrNilValue is returned when a write carries an empty Value union.
	ErrNilValue = errors.New("value must be json or double")

	ErrBucketNameTooLong = errors.New("bucket name exceeds 255 bytes")
	ErrKeyTooLong        = errors.New("key exceeds 255 bytes")
	ErrValueTooLarge     = errors.New("serialized value exceeds configured maximum")
	ErrInvalidCondition  = errors.New("unknown set condition")
	ErrInvalidSortOrder  = errors.New("unknown sort order")
)
