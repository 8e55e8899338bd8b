package broadcast

import (
	"context"
	"sync"

	"github.com/gianpietrodimatteo/tictactoe-backend/internal/entity"
)

type subscriber struct {
	ch        chan entity.Snapshot
	done      chan struct{}
	closeOnce sync.Once
}

func (that *subscriber) close() {
	that.closeOnce.Do(func() {
		close(that.ch)
		close(that.done)
	})
}

// Hub fans game snapshots out to the subscribers of each game.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

// Subscribe returns a stream of snapshots for gameID. The stream closes when ctx is done,
// when the returned func is called or when the game is closed.
func (that *Hub) Subscribe(ctx context.Context, gameID string) (<-chan entity.Snapshot, func()) {
	sub := &subscriber{
		ch:   make(chan entity.Snapshot, 1),
		done: make(chan struct{}),
	}

	that.mu.Lock()
	set, ok := that.subs[gameID]
	if !ok {
		set = make(map[*subscriber]struct{})
		that.subs[gameID] = set
	}
	set[sub] = struct{}{}
	that.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			that.remove(gameID, sub)
			sub.close()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-sub.done:
		}
	}()

	return sub.ch, unsubscribe
}

// Publish never blocks. A subscriber that has not read its previous snapshot gets it replaced.
func (that *Hub) Publish(gameID string, snapshot entity.Snapshot) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for sub := range that.subs[gameID] {
		select {
		case sub.ch <- snapshot:
			continue
		default:
		}

		// drop the stale snapshot
		select {
		case <-sub.ch:
		default:
		}

		sub.ch <- snapshot
	}
}

// Close ends every subscription of gameID.
func (that *Hub) Close(gameID string) {
	that.mu.Lock()
	set := that.subs[gameID]
	delete(that.subs, gameID)
	that.mu.Unlock()

	for sub := range set {
		sub.close()
	}
}

func (that *Hub) Subscribers(gameID string) int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.subs[gameID])
}

func (that *Hub) remove(gameID string, sub *subscriber) {
	that.mu.Lock()
	defer that.mu.Unlock()

	set, ok := that.subs[gameID]
	if !ok {
		return
	}

	delete(set, sub)
	if len(set) == 0 {
		delete(that.subs, gameID)
	}
}
