package models

import (
	"encoding/json"
	"time"
)

// GuildID identifies the tenant (Discord guild) an entry belongs to.
type GuildID int64

// PluginID identifies the guild-scoped script plugin a bucket belongs to.
// PluginGlobal addresses buckets shared by all of a guild's scripts.
type PluginID int64

const PluginGlobal PluginID = 0

// Limits enforced before any statement reaches the database.
const (
	MaxBucketNameLength = 255
	MaxKeyLength        = 255

	// DefaultMaxValueBytes caps serialized JSON documents unless overridden
	// through StorageConfig.
	DefaultMaxValueBytes = 1 << 20
)

type ValueKind string

const (
	ValueKindJSON   ValueKind = "json"
	ValueKindDouble ValueKind = "double"
)

// Value is the tagged union stored in an entry: either an opaque JSON
// document or a float64. Exactly one side is populated.
type Value struct {
	Kind   ValueKind
	JSON   json.RawMessage
	Double float64
}

func JSONValue(raw json.RawMessage) Value {
	return Value{Kind: ValueKindJSON, JSON: raw}
}

func DoubleValue(f float64) Value {
	return Value{Kind: ValueKindDouble, Double: f}
}

// IsZero reports whether the value carries neither variant.
func (v Value) IsZero() bool {
	return v.Kind == ""
}

// DecodeValue reassembles a Value from the two storage columns. The float
// column wins when both are set. A row with neither column populated is
// corrupt; DecodeValue returns a JSON null value alongside ErrCorruptEntry
// so callers can log and keep going.
func DecodeValue(valueFloat *float64, valueJSON []byte) (Value, error) {
	if valueFloat != nil {
		return DoubleValue(*valueFloat), nil
	}
	if valueJSON != nil {
		return JSONValue(json.RawMessage(valueJSON)), nil
	}
	return JSONValue(json.RawMessage("null")), ErrCorruptEntry
}

// Entry is a single stored row. ExpiresAt == nil means the entry never
// expires. CreatedAt survives updates of a live entry and is reset when an
// expired entry is overwritten.
type Entry struct {
	GuildID   GuildID
	PluginID  PluginID
	Bucket    string
	Key       string
	Value     Value
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt *time.Time
}

// SetCondition gates a conditional write.
type SetCondition string

const (
	// IfExists only writes when a live entry is already present.
	IfExists SetCondition = "if_exists"
	// IfNotExists only writes when no live entry is present. An expired
	// entry counts as absent and is recreated.
	IfNotExists SetCondition = "if_not_exists"
)

// SortOrder directs value-sorted listings.
type SortOrder string

const (
	OrderAscending  SortOrder = "ascending"
	OrderDescending SortOrder = "descending"
)

func (o SortOrder) Valid() bool {
	return o == OrderAscending || o == OrderDescending
}
