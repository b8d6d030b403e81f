// Package tap mirrors broadcast session events to an external pub/sub bus.
package tap

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireboard-server/internal/core"
	"github.com/vovakirdan/wireboard-server/internal/proto"
)

// Publisher sends one encoded frame to a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Close() error
}

// DropCounter is notified when an event is lost.
type DropCounter interface {
	TapDropped()
}

// Tap queues events offered by the hub and publishes them from its own
// goroutine so a slow bus never stalls sequencing.
type Tap struct {
	pub     Publisher
	channel string
	queue   chan *core.Event
	drops   DropCounter
	log     *zerolog.Logger

	closeOnce sync.Once
	stopped   chan struct{}
}

// New builds a tap over pub. buffer bounds the number of unpublished events.
func New(pub Publisher, channel string, buffer int, drops DropCounter, logger *zerolog.Logger) *Tap {
	if buffer <= 0 {
		buffer = 1
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Tap{
		pub:     pub,
		channel: channel,
		queue:   make(chan *core.Event, buffer),
		drops:   drops,
		log:     logger,
		stopped: make(chan struct{}),
	}
}

// Offer enqueues ev without blocking. A full queue drops the event.
func (t *Tap) Offer(ev *core.Event) {
	select {
	case <-t.stopped:
		return
	default:
	}
	select {
	case t.queue <- ev:
	default:
		t.dropped()
		t.log.Debug().Str("reason", core.ReasonTapOverflow).Msg("tap event dropped")
	}
}

// Run publishes queued events until ctx is done or Close is called.
func (t *Tap) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopped:
			return
		case ev := <-t.queue:
			if err := t.publish(ctx, ev); err != nil {
				t.dropped()
				t.log.Warn().Err(err).Str("channel", t.channel).Msg("tap publish failed")
			}
		}
	}
}

// Close stops Run and releases the publisher.
func (t *Tap) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stopped)
		err = t.pub.Close()
	})
	return err
}

func (t *Tap) publish(ctx context.Context, ev *core.Event) error {
	frame := proto.FromEvent(ev)
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode %s: %w", frame.Event, err)
	}
	return t.pub.Publish(ctx, t.channel, payload)
}

func (t *Tap) dropped() {
	if t.drops != nil {
		t.drops.TapDropped()
	}
}

// RedisPublisher publishes frames with PUBLISH on a go-redis client.
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher connects to addr and checks it with PING.
func NewRedisPublisher(ctx context.Context, addr string) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &RedisPublisher{rdb: rdb}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.rdb.Publish(ctx, channel, payload).Err()
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
