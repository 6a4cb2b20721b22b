package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/wbs/internal/feed"
	"go.uber.org/zap"
)

// Syncer feeds remote change events for one project into a ProjectCache.
type Syncer struct {
	cache *ProjectCache
	sub   feed.Subscriber
	log   *zap.Logger
	// OnEvent, when set, is called after each event is applied.
	OnEvent func(feed.Event)
	// OverflowCheck is how often the subscription is polled for dropped
	// events when the feed is quiet.
	OverflowCheck time.Duration
}

const defaultOverflowCheck = 100 * time.Millisecond

func NewSyncer(cache *ProjectCache, sub feed.Subscriber, log *zap.Logger) *Syncer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer{cache: cache, sub: sub, log: log.Named("syncer"), OverflowCheck: defaultOverflowCheck}
}

// Start subscribes synchronously and applies events in a goroutine until
// ctx is cancelled or the subscription ends. The returned channel is closed
// when the goroutine exits. Missed events (subscriber overflow) invalidate
// the project.
func (s *Syncer) Start(ctx context.Context, projectID string) (<-chan struct{}, error) {
	sub, err := s.sub.Subscribe(ctx, feed.TableWBSItems, projectID)
	if err != nil {
		return nil, fmt.Errorf("subscribing to project %s: %w", projectID, err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer sub.Close()
		s.loop(ctx, projectID, sub)
	}()
	return done, nil
}

// Run is Start followed by waiting for the loop to finish.
func (s *Syncer) Run(ctx context.Context, projectID string) error {
	done, err := s.Start(ctx, projectID)
	if err != nil {
		return err
	}
	<-done
	return nil
}

func (s *Syncer) loop(ctx context.Context, projectID string, sub feed.Subscription) {
	every := s.OverflowCheck
	if every <= 0 {
		every = defaultOverflowCheck
	}
	// A burst whose tail was dropped has no later event to notice it.
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkOverflow(projectID, sub)
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			s.checkOverflow(projectID, sub)
			s.cache.Apply(ev)
			if s.OnEvent != nil {
				s.OnEvent(ev)
			}
		}
	}
}

func (s *Syncer) checkOverflow(projectID string, sub feed.Subscription) {
	if sub.Overflowed() {
		s.log.Warn("change feed overflowed; invalidating project", zap.String("project_id", projectID))
		s.cache.Invalidate(projectID)
	}
}
