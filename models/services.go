package models

import "context"

type ServiceID string

const (
	// CORE
	ServiceBucketStore ServiceID = "bucket_store_service"

	// QUOTA
	ServiceQuota ServiceID = "quota_service"
)

func (id ServiceID) String() string {
	return string(id)
}

type ServiceRegistry interface {
	Register(name string, service any)
	Get(name string) any
}

// QuotaService gates writes against per-guild storage budgets. Registered
// by the quota plugin under ServiceQuota; when absent, writes are
// unrestricted.
type QuotaService interface {
	// UsageBytes reports the guild's current storage footprint.
	UsageBytes(ctx context.Context, guildID GuildID) (int64, error)
	// CheckWrite returns ErrGuildStorageLimitReached when adding
	// incomingBytes would push the guild past its budget.
	CheckWrite(ctx context.Context, guildID GuildID, incomingBytes int64) error
	// InvalidateUsage drops any cached usage figure for the guild.
	InvalidateUsage(ctx context.Context, guildID GuildID) error
}
