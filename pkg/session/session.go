// Package session implements the server-side session table: one entry per
// negotiated client connection, keyed by session ID, evicted after an idle
// TTL.
//
// The table is sharded over a fixed number of buckets, each guarded by its
// own sync.RWMutex, rather than a single global lock or sync.Map. This is
// a read-preferring concurrency discipline: session lookups happen on
// every request, while creation/deletion are comparatively rare, and
// sharding bounds lock contention under concurrent load without pulling in
// an external concurrent-map library.
package session

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/fyrsmithlabs/gomcp/pkg/ids"
	"github.com/fyrsmithlabs/gomcp/pkg/mcperr"
	"github.com/fyrsmithlabs/gomcp/pkg/protocol"
)

// Session is one negotiated client connection's server-side state.
type Session struct {
	ID              string
	ProtocolVersion protocol.ProtocolVersion
	ClientInfo      protocol.Implementation
	Capabilities    protocol.Capabilities
	CreatedAt       time.Time
	LastActiveAt    time.Time

	mu            sync.RWMutex
	subscriptions map[string]struct{} // resource URIs this session subscribed to
}

// Subscribe records a resource subscription for this session.
func (s *Session) Subscribe(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscriptions == nil {
		s.subscriptions = make(map[string]struct{})
	}
	s.subscriptions[uri] = struct{}{}
}

// Unsubscribe removes a resource subscription. Unsubscribing from a URI
// with no active subscription is a no-op (Open Question #1 in DESIGN.md).
func (s *Session) Unsubscribe(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscriptions, uri)
}

// IsSubscribed reports whether this session is subscribed to uri.
func (s *Session) IsSubscribed(uri string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.subscriptions[uri]
	return ok
}

const defaultShardCount = 16

// Manager is the sharded, TTL-evicting session table.
type Manager struct {
	shards      []*shard
	shardCount  uint32
	ttl         time.Duration
	maxSessions int

	closeOnce sync.Once
	stopCh    chan struct{}
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// Config configures a Manager.
type Config struct {
	TTL         time.Duration
	ShardCount  int
	MaxSessions int
}

// NewManager constructs a Manager and starts its background eviction loop.
// Call Close to stop the loop.
func NewManager(cfg Config) *Manager {
	shardCount := cfg.ShardCount
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	m := &Manager{
		shards:      make([]*shard, shardCount),
		shardCount:  uint32(shardCount),
		ttl:         ttl,
		maxSessions: cfg.MaxSessions,
		stopCh:      make(chan struct{}),
	}
	for i := range m.shards {
		m.shards[i] = &shard{sessions: make(map[string]*Session)}
	}

	go m.evictLoop()
	return m
}

func (m *Manager) shardFor(sessionID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return m.shards[h.Sum32()%m.shardCount]
}

// Create allocates a new session and stores it.
func (m *Manager) Create(clientInfo protocol.Implementation, version protocol.ProtocolVersion, caps protocol.Capabilities) (*Session, *mcperr.Error) {
	if m.maxSessions > 0 && m.Count() >= m.maxSessions {
		return nil, mcperr.InternalError("session table full")
	}

	now := time.Now()
	s := &Session{
		ID:              ids.NewSessionID(),
		ProtocolVersion: version,
		ClientInfo:      clientInfo,
		Capabilities:    caps,
		CreatedAt:       now,
		LastActiveAt:    now,
	}

	sh := m.shardFor(s.ID)
	sh.mu.Lock()
	sh.sessions[s.ID] = s
	sh.mu.Unlock()

	return s, nil
}

// Get returns the session for id, touching its LastActiveAt. A request
// against an id that was never created by Initialize, or whose session
// expired since, is indistinguishable from one that was never initialized
// at all -- both fail with InvalidRequest per the initialize handshake's
// contract (spec.md §4.8).
func (m *Manager) Get(id string) (*Session, *mcperr.Error) {
	sh := m.shardFor(id)
	sh.mu.RLock()
	s, ok := sh.sessions[id]
	sh.mu.RUnlock()
	if !ok {
		return nil, mcperr.InvalidRequest(fmt.Sprintf("session not initialized: %s", id))
	}

	if time.Since(s.LastActiveAt) > m.ttl {
		m.Delete(id)
		return nil, mcperr.InvalidRequest(fmt.Sprintf("session not initialized: %s", id))
	}

	sh.mu.Lock()
	s.LastActiveAt = time.Now()
	sh.mu.Unlock()

	return s, nil
}

// Delete removes a session.
func (m *Manager) Delete(id string) {
	sh := m.shardFor(id)
	sh.mu.Lock()
	delete(sh.sessions, id)
	sh.mu.Unlock()
}

// Count returns the total number of live sessions across all shards.
func (m *Manager) Count() int {
	total := 0
	for _, sh := range m.shards {
		sh.mu.RLock()
		total += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return total
}

// Close stops the background eviction loop.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.stopCh)
	})
}

func (m *Manager) evictLoop() {
	ticker := time.NewTicker(m.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.evictExpired()
		}
	}
}

func (m *Manager) evictExpired() {
	now := time.Now()
	for _, sh := range m.shards {
		sh.mu.Lock()
		for id, s := range sh.sessions {
			if now.Sub(s.LastActiveAt) > m.ttl {
				delete(sh.sessions, id)
			}
		}
		sh.mu.Unlock()
	}
}

// RunUntil blocks until ctx is cancelled, then closes the manager. Intended
// to be run in a goroutine alongside server lifecycle shutdown.
func (m *Manager) RunUntil(ctx context.Context) {
	<-ctx.Done()
	m.Close()
}
