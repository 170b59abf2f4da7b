package gateway

import (
	"context"

	pkgredis "github.com/mx-space/wiki/internal/pkg/redis"
)

// Bus carries hub messages between instances.
type Bus interface {
	Publish(ctx context.Context, payload []byte) error
	// Subscribe delivers payloads published by any instance until ctx is done.
	Subscribe(ctx context.Context) (<-chan []byte, error)
}

// RedisBus fans messages out over one Redis pub/sub channel.
type RedisBus struct {
	rc *pkgredis.Client
}

func NewRedisBus(rc *pkgredis.Client) *RedisBus { return &RedisBus{rc: rc} }

func (b *RedisBus) Publish(ctx context.Context, payload []byte) error {
	return b.rc.Publish(ctx, redisChannel, string(payload))
}

func (b *RedisBus) Subscribe(ctx context.Context) (<-chan []byte, error) {
	pubsub := b.rc.Subscribe(ctx, redisChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(m.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
