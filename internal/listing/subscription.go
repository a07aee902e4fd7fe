package listing

import (
	"context"
	"errors"
	"sync"

	"github.com/orbitapp/orbit-server/internal/domain"
	"github.com/orbitapp/orbit-server/internal/metrics"
	"github.com/orbitapp/orbit-server/internal/store"
)

// ErrSearchNotLive is returned when a subscription is requested with a search term.
// Search is a one-shot operation.
var ErrSearchNotLive = errors.New("search results cannot be subscribed to")

// Snapshot is the merged view published after every stream delivery.
type Snapshot struct {
	Items        []*domain.Entity `json:"items"`
	Initializing bool             `json:"initializing"`
	LoadingMore  bool             `json:"loading_more"`
	HasMore      bool             `json:"has_more"`
	Degraded     []StreamName     `json:"degraded,omitempty"`
}

// liveStream is one stream's current page. Each delivery replaces it whole.
type liveStream struct {
	plan      StreamPlan
	window    int
	items     []*domain.Entity
	hasMore   bool
	err       error
	delivered bool
	growing   bool
	seq       int
}

type delivery struct {
	index   int
	seq     int
	items   []*domain.Entity
	hasMore bool
	err     error
}

// Subscription keeps a listing current. Each stream re-reads its current page
// whenever a relevant change is reported; every re-read re-runs the filter,
// merge and sort and publishes a fresh Snapshot.
type Subscription struct {
	engine *Engine
	userID string

	streams    []*liveStream
	updates    chan Snapshot
	changed    chan struct{}
	more       chan struct{}
	deliveries chan delivery

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	onClose   func()
}

// Subscribe starts a live listing. Close it when done.
// Without a Hub, changes only propagate through explicit Notify calls.
func (e *Engine) Subscribe(ctx context.Context, userID string, req Request) (*Subscription, error) {
	return e.subscribe(ctx, userID, req, nil)
}

// subscribe builds the subscription and calls attach before it starts running.
func (e *Engine) subscribe(ctx context.Context, userID string, req Request, attach func(*Subscription)) (*Subscription, error) {
	if hasTerm(req.Term) {
		return nil, ErrSearchNotLive
	}

	plan := e.planner.Plan(userID, req)
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		engine:     e,
		userID:     userID,
		updates:    make(chan Snapshot, 1),
		changed:    make(chan struct{}, 1),
		more:       make(chan struct{}, 1),
		deliveries: make(chan delivery, len(plan.Streams)),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	for _, sp := range plan.Streams {
		sub.streams = append(sub.streams, &liveStream{plan: sp, window: e.limit(req)})
	}

	if attach != nil {
		attach(sub)
	}
	metrics.SubscriptionOpened()
	go sub.run(ctx)
	return sub, nil
}

// UserID returns the subscriber.
func (s *Subscription) UserID() string { return s.userID }

// Updates delivers snapshots. Only the latest undelivered snapshot is kept.
// The channel is closed when the subscription ends.
func (s *Subscription) Updates() <-chan Snapshot { return s.updates }

// Done is closed when the subscription has stopped.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Notify reports a store change. It never blocks; bursts coalesce into one re-read.
func (s *Subscription) Notify(ev store.ChangeEvent) {
	if ev.Collection != store.CollectionEntities || !ev.Affects(s.userID) {
		return
	}
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// LoadMore grows the window of every stream that still has more.
func (s *Subscription) LoadMore() {
	select {
	case s.more <- struct{}{}:
	default:
	}
}

// Close stops the subscription.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
	})
	<-s.done
}

func (s *Subscription) run(ctx context.Context) {
	defer func() {
		if s.onClose != nil {
			s.onClose()
		}
		metrics.SubscriptionClosed()
		close(s.updates)
		close(s.done)
	}()

	for i := range s.streams {
		s.fetch(ctx, i)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.deliveries:
			ls := s.streams[d.index]
			if d.seq != ls.seq {
				continue // superseded by a newer read
			}
			ls.items, ls.hasMore, ls.err = d.items, d.hasMore, d.err
			ls.delivered, ls.growing = true, false
			s.publish(s.snapshot())
		case <-s.changed:
			for i := range s.streams {
				s.fetch(ctx, i)
			}
		case <-s.more:
			grew := false
			for i, ls := range s.streams {
				if ls.hasMore {
					ls.window += s.engine.cfg.PageSize
					ls.growing = true
					s.fetch(ctx, i)
					grew = true
				}
			}
			if grew {
				s.publish(s.snapshot())
			}
		}
	}
}

// fetch re-reads stream i's whole window in the background.
func (s *Subscription) fetch(ctx context.Context, i int) {
	ls := s.streams[i]
	ls.seq++
	seq, plan, window := ls.seq, ls.plan, ls.window

	go func() {
		items, hasMore, err := s.engine.readWindow(ctx, plan, window)
		select {
		case s.deliveries <- delivery{index: i, seq: seq, items: items, hasMore: hasMore, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (s *Subscription) snapshot() Snapshot {
	snap := Snapshot{Items: []*domain.Entity{}}
	var lists [][]*domain.Entity
	for _, ls := range s.streams {
		if !ls.delivered {
			snap.Initializing = true
			continue
		}
		if ls.growing {
			snap.LoadingMore = true
		}
		if ls.err != nil {
			snap.Degraded = append(snap.Degraded, ls.plan.Name)
			continue
		}
		lists = append(lists, ls.items)
		if ls.hasMore {
			snap.HasMore = true
		}
	}
	snap.Items = Merge(lists...)
	return snap
}

// publish replaces any unread snapshot with snap.
func (s *Subscription) publish(snap Snapshot) {
	select {
	case s.updates <- snap:
		return
	default:
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- snap
}

// readWindow reads the first n filtered entities of a stream.
func (e *Engine) readWindow(ctx context.Context, sp StreamPlan, n int) ([]*domain.Entity, bool, error) {
	var out []*domain.Entity
	q := sp.Query
	for {
		q.Limit = min(n-len(out), store.MaxPageSize)
		page, err := e.store.QueryEntities(ctx, q)
		if err != nil {
			return nil, false, err
		}
		out = append(out, filterInPlace(page.Items, sp.Keep)...)
		if !page.HasMore {
			return out, false, nil
		}
		if len(out) >= n {
			return out, true, nil
		}
		q.After = page.NextCursor
	}
}
