package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultChannel is the pub/sub channel shared by all API instances.
const DefaultChannel = "clinicdesk:changes"

// RedisFeed publishes to a Redis channel and relays everything received on
// it, including this instance's own changes, to local subscribers.
type RedisFeed struct {
	client  *redis.Client
	channel string
	local   *Broker
	pubsub  *redis.PubSub
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	logger  zerolog.Logger
}

// NewRedisFeed subscribes to channel and starts relaying. The subscription
// is confirmed before NewRedisFeed returns.
func NewRedisFeed(ctx context.Context, client *redis.Client, channel string, logger zerolog.Logger) (*RedisFeed, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	ps := client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &RedisFeed{
		client:  client,
		channel: channel,
		local:   NewBroker(),
		pubsub:  ps,
		cancel:  cancel,
		done:    make(chan struct{}),
		logger:  logger.With().Str("component", "changefeed").Logger(),
	}
	go f.relay(runCtx)
	return f, nil
}

func (f *RedisFeed) relay(ctx context.Context) {
	defer close(f.done)
	ch := f.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				f.logger.Warn().Err(err).Msg("discarding malformed change")
				continue
			}
			if err := f.local.Publish(ctx, c); err != nil {
				f.logger.Warn().Err(err).Str("collection", c.Collection).Str("id", c.ID).Msg("local delivery failed")
			}
		}
	}
}

func (f *RedisFeed) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

func (f *RedisFeed) Subscribe(buffer int) *Subscription {
	return f.local.Subscribe(buffer)
}

func (f *RedisFeed) Close() error {
	var err error
	f.once.Do(func() {
		f.cancel()
		err = f.pubsub.Close()
		<-f.done
		_ = f.local.Close()
	})
	return err
}
