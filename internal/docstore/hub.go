package docstore

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/chatline/internal/common"
	"github.com/dmitrijs2005/chatline/internal/logging"
)

type docKey struct {
	collection string
	id         string
}

func (k docKey) String() string {
	return k.collection + "/" + k.id
}

type loadFunc func(ctx context.Context, key docKey) (Snapshot, error)

// hub fans committed changes out to document subscriptions. A change only
// marks a subscription dirty; its goroutine then re-reads the document and
// delivers whatever is current. Bursts of writes collapse into one delivery
// and a subscriber never sees an older state after a newer one.
type hub struct {
	mu     sync.Mutex
	subs   map[docKey]map[*subscription]struct{}
	load   loadFunc
	logger logging.Logger
	closed bool
}

func newHub(load loadFunc, logger logging.Logger) *hub {
	return &hub{
		subs:   make(map[docKey]map[*subscription]struct{}),
		load:   load,
		logger: logger,
	}
}

type subscription struct {
	hub    *hub
	key    docKey
	fn     func(Snapshot)
	dirty  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func (h *hub) subscribe(key docKey, fn func(Snapshot)) (*subscription, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &subscription{
		hub:    h,
		key:    key,
		fn:     fn,
		dirty:  make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cancel()
		return nil, common.ErrClosed
	}
	set, ok := h.subs[key]
	if !ok {
		set = make(map[*subscription]struct{})
		h.subs[key] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()

	s.mark()
	go s.run()
	return s, nil
}

// notify marks every subscription on keys dirty.
func (h *hub) notify(keys ...docKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, k := range keys {
		for s := range h.subs[k] {
			s.mark()
		}
	}
}

func (h *hub) notifyAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.subs {
		for s := range set {
			s.mark()
		}
	}
}

func (h *hub) remove(s *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[s.key]
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.key)
	}
}

func (h *hub) close() {
	h.mu.Lock()
	h.closed = true
	var all []*subscription
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.mu.Unlock()

	for _, s := range all {
		s.Cancel()
	}
}

func (h *hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

func (s *subscription) mark() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.dirty:
		}

		snap, err := s.hub.load(s.ctx, s.key)
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			s.hub.logger.Warn(s.ctx, "snapshot load failed", "doc", s.key.String(), "error", err)
			continue
		}
		s.fn(snap)
	}
}

func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.cancel()
		s.hub.remove(s)
	})
}
