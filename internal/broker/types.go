package broker

import (
	"context"
)

type Message struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

type Producer interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Close() error
}
