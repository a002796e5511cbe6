package common

import (
	"context"
	"time"
)

// Message is a consumed message, decoupled from the broker client types.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
	Headers   map[string]string
}

// MessageHandler processes one consumed message. A nil return commits the
// offset; an error triggers the consumer's retry and dead-letter policy.
type MessageHandler func(ctx context.Context, msg *Message) error

// ProducerMessage is a message to be published.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
	Partition int
}

// TopicConfig describes a topic to create or verify.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
	CleanupPolicy     string
	MaxMessageBytes   int
	Configs           map[string]string
}
