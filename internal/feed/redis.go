package feed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisFeed bridges events between processes over Redis pub/sub, one
// channel per table and project: wbs:<table>:<project_id>.
type RedisFeed struct {
	client           *redis.Client
	log              *zap.Logger
	subscriberBuffer int
}

func NewRedisFeed(client *redis.Client, log *zap.Logger) *RedisFeed {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisFeed{client: client, log: log.Named("feed.redis"), subscriberBuffer: DefaultSubscriberBuffer}
}

// Channel returns the Redis channel name for a table and project.
func Channel(table, projectID string) string {
	return "wbs:" + Topic(table, projectID)
}

func (f *RedisFeed) Publish(ctx context.Context, ev Event) error {
	payload, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, Channel(ev.Table, ev.ProjectID), payload).Err(); err != nil {
		return fmt.Errorf("publishing %s event: %w", ev.Type, err)
	}
	return nil
}

// Subscribe waits for Redis to confirm the subscription before returning,
// so events published afterwards are not missed.
func (f *RedisFeed) Subscribe(ctx context.Context, table, projectID string) (Subscription, error) {
	channel := Channel(table, projectID)
	ps := f.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", channel, err)
	}

	sub := &redisSubscription{
		ps:   ps,
		ch:   make(chan Event, f.subscriberBuffer),
		done: make(chan struct{}),
	}
	sub.wg.Add(1)
	go sub.pump(f.log.With(zap.String("channel", channel)))
	return sub, nil
}

type redisSubscription struct {
	ps       *redis.PubSub
	ch       chan Event
	done     chan struct{}
	overflow atomic.Bool
	wg       sync.WaitGroup
	once     sync.Once
}

func (s *redisSubscription) pump(log *zap.Logger) {
	defer s.wg.Done()
	defer close(s.ch)
	msgs := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			ev, err := decodeEvent([]byte(msg.Payload))
			if err != nil {
				log.Warn("dropping undecodable event", zap.Error(err))
				continue
			}
			select {
			case s.ch <- ev:
			default:
				s.overflow.Store(true)
			}
		}
	}
}

func (s *redisSubscription) Events() <-chan Event { return s.ch }

func (s *redisSubscription) Overflowed() bool { return s.overflow.Swap(false) }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
		s.wg.Wait()
	})
	return err
}
