package events

import "github.com/GoBucketStore/go-bucket-store/models"

type EventBusProvider string

const (
	ProviderGoChannel EventBusProvider = "gochannel"
	ProviderSQLite    EventBusProvider = "sqlite"
	ProviderPostgres  EventBusProvider = "postgres"
	ProviderRedis     EventBusProvider = "redis"
	ProviderKafka     EventBusProvider = "kafka"
	ProviderNATS      EventBusProvider = "nats"
	ProviderRabbitMQ  EventBusProvider = "rabbitmq"
)

func (p EventBusProvider) String() string {
	return string(p)
}

func (p EventBusProvider) Valid() bool {
	switch p {
	case ProviderGoChannel, ProviderSQLite, ProviderPostgres, ProviderRedis, ProviderKafka, ProviderNATS, ProviderRabbitMQ:
		return true
	}
	return false
}

// Event types published by the bucket store after successful mutations.
const (
	EventEntrySet     = "storage.entry_set"
	EventEntryDeleted = "storage.entry_deleted"
	EventBucketPurged = "storage.bucket_purged"
	EventGuildPurged  = "storage.guild_purged"
)

// EntryChange is the payload of EventEntrySet and EventEntryDeleted.
type EntryChange struct {
	GuildID  models.GuildID  `json:"guild_id"`
	PluginID models.PluginID `json:"plugin_id"`
	Bucket   string          `json:"bucket"`
	Key      string          `json:"key"`
}

// BucketPurge is the payload of EventBucketPurged. Pattern is the glob the
// purge was issued with; Removed counts deleted rows, expired ones included.
type BucketPurge struct {
	GuildID  models.GuildID  `json:"guild_id"`
	PluginID models.PluginID `json:"plugin_id"`
	Bucket   string          `json:"bucket"`
	Pattern  string          `json:"pattern"`
	Removed  int64           `json:"removed"`
}

// GuildPurge is the payload of EventGuildPurged.
type GuildPurge struct {
	GuildID models.GuildID `json:"guild_id"`
	Removed int64          `json:"removed"`
}
