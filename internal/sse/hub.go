package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is one entry on a unit's inspection stream (checkpoint created,
// reviewed, issue raised, activity completed).
type Event struct {
	ID   int64       `json:"id"`
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type subscriber struct {
	ch chan Event
}

// Hub fans inspection events out to SSE subscribers per unit. When a redis
// client is supplied, events are also appended to a capped redis list so
// reconnecting clients can replay what they missed.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[int64][]*subscriber // unitID -> subscribers
	rdb         *redis.Client
}

func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		subscribers: make(map[int64][]*subscriber),
		rdb:         rdb,
	}
}

func (h *Hub) Subscribe(unitID int64) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &subscriber{ch: make(chan Event, 256)}
	h.subscribers[unitID] = append(h.subscribers[unitID], sub)

	unsub := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[unitID]
		for i, s := range subs {
			if s == sub {
				h.subscribers[unitID] = append(subs[:i], subs[i+1:]...)
				close(sub.ch)
				break
			}
		}
		if len(h.subscribers[unitID]) == 0 {
			delete(h.subscribers, unitID)
		}
	}
	return sub.ch, unsub
}

func (h *Hub) Broadcast(unitID int64, event Event) {
	if h.rdb != nil {
		ctx := context.Background()
		key := streamKey(unitID)
		data, _ := json.Marshal(event)
		h.rdb.RPush(ctx, key, string(data))
		h.rdb.LTrim(ctx, key, -1000, -1)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers[unitID] {
		select {
		case sub.ch <- event:
		default:
			// drop if full
		}
	}
}

func (h *Hub) ReplayFrom(unitID int64, fromID int64) ([]Event, error) {
	if h.rdb == nil {
		return nil, nil
	}
	items, err := h.rdb.LRange(context.Background(), streamKey(unitID), fromID, -1).Result()
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(items))
	for i, item := range items {
		var ev Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			continue
		}
		ev.ID = fromID + int64(i)
		events = append(events, ev)
	}
	return events, nil
}

func (h *Hub) SetExpire(unitID int64, ttl time.Duration) {
	if h.rdb == nil {
		return
	}
	h.rdb.Expire(context.Background(), streamKey(unitID), ttl)
}

func streamKey(unitID int64) string {
	return fmt.Sprintf("inspection:stream:%d", unitID)
}
