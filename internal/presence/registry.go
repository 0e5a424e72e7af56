// ABOUTME: Process-wide registry of live user connections with presence broadcast
// ABOUTME: Sharded per-user-key locking; a user may own many simultaneous connections

package presence

import (
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"

	"github.com/taskhaven/chat-gateway/internal/store"
)

// shardCount is the number of lock shards. Connect/disconnect storms hit the
// registry far more often than message sends, so contention is spread across
// shards instead of a single registry-wide lock.
const shardCount = 32

// Conn is one live transport session owned by a user. Implementations must
// not block in the push methods; the registry and dispatcher call them on hot
// paths and expect buffered, drop-on-full semantics for slow consumers.
type Conn interface {
	// PushMessage delivers a persisted message to this connection.
	PushMessage(msg *store.Message) error

	// PushPresence delivers the full set of currently online user IDs.
	PushPresence(online []string) error
}

type shard struct {
	mu    sync.RWMutex
	users map[string]map[Conn]struct{}
}

// Registry tracks which users currently hold live connections. It is
// constructed once at process start and passed to every connection handler;
// it is safe for concurrent use.
//
// Anonymous connections are tracked separately: they never appear in the
// online set but still receive presence broadcasts.
type Registry struct {
	shards [shardCount]*shard
	logger *slog.Logger

	anonMu sync.Mutex
	anon   map[Conn]struct{}
}

// NewRegistry creates an empty registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		logger: logger.With("component", "presence"),
		anon:   make(map[Conn]struct{}),
	}
	for i := range r.shards {
		r.shards[i] = &shard{users: make(map[string]map[Conn]struct{})}
	}
	return r
}

func (r *Registry) shardFor(userID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return r.shards[h.Sum32()%shardCount]
}

// Register adds a connection to the user's set. Registering an empty user ID
// is a no-op: unauthenticated connections are allowed on the transport but
// excluded from presence. If this is the user's first connection, the updated
// presence snapshot is broadcast to all live connections.
//
// The return value reports whether that broadcast fired. A caller that wants
// the new connection to have seen a snapshot must push one itself when
// Register did not broadcast; pushing one when it did would leave the
// connection's event stream one stale snapshot ahead of reality.
func (r *Registry) Register(userID string, c Conn) bool {
	if userID == "" || c == nil {
		return false
	}

	sh := r.shardFor(userID)
	sh.mu.Lock()
	set, ok := sh.users[userID]
	if !ok {
		set = make(map[Conn]struct{})
		sh.users[userID] = set
	}
	set[c] = struct{}{}
	first := len(set) == 1
	sh.mu.Unlock()

	r.logger.Debug("connection registered", "user_id", userID, "first", first)

	if first {
		r.broadcastPresence()
	}
	return first
}

// RegisterAnonymous adds an unidentified connection as a presence broadcast
// target. It never changes the online set and never triggers a broadcast.
func (r *Registry) RegisterAnonymous(c Conn) {
	if c == nil {
		return
	}
	r.anonMu.Lock()
	r.anon[c] = struct{}{}
	r.anonMu.Unlock()

	r.logger.Debug("anonymous connection registered")
}

// UnregisterAnonymous removes an unidentified connection. Idempotent.
func (r *Registry) UnregisterAnonymous(c Conn) {
	if c == nil {
		return
	}
	r.anonMu.Lock()
	delete(r.anon, c)
	r.anonMu.Unlock()
}

// Unregister removes exactly that connection from the user's set. It is a
// no-op if the connection was already removed, so duplicate disconnect events
// are harmless. When the user's last connection goes away the user leaves the
// presence set and the updated snapshot is broadcast.
func (r *Registry) Unregister(userID string, c Conn) {
	if userID == "" || c == nil {
		return
	}

	sh := r.shardFor(userID)
	sh.mu.Lock()
	set, ok := sh.users[userID]
	if !ok {
		sh.mu.Unlock()
		return
	}
	if _, present := set[c]; !present {
		sh.mu.Unlock()
		return
	}
	delete(set, c)
	last := len(set) == 0
	if last {
		delete(sh.users, userID)
	}
	sh.mu.Unlock()

	r.logger.Debug("connection unregistered", "user_id", userID, "last", last)

	if last {
		r.broadcastPresence()
	}
}

// Lookup returns the user's current connections. The returned slice is a
// copy; it may be empty but never nil-dereferences under concurrent mutation.
func (r *Registry) Lookup(userID string) []Conn {
	sh := r.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	set, ok := sh.users[userID]
	if !ok {
		return nil
	}
	conns := make([]Conn, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	return conns
}

// Online reports whether the user currently holds at least one connection.
func (r *Registry) Online(userID string) bool {
	sh := r.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	_, ok := sh.users[userID]
	return ok
}

// Snapshot returns the sorted set of user IDs with at least one live
// connection. Reads take each shard lock in turn, so a snapshot taken during
// a connect/disconnect storm is eventually consistent rather than a single
// linearization point; per-user state is always exact.
func (r *Registry) Snapshot() []string {
	var online []string
	for _, sh := range r.shards {
		sh.mu.RLock()
		for userID := range sh.users {
			online = append(online, userID)
		}
		sh.mu.RUnlock()
	}
	sort.Strings(online)
	return online
}

// broadcastPresence pushes the full snapshot to every live connection,
// anonymous ones included. Push errors are logged and dropped; presence is
// best-effort.
func (r *Registry) broadcastPresence() {
	online := r.Snapshot()

	var targets []Conn
	for _, sh := range r.shards {
		sh.mu.RLock()
		for _, set := range sh.users {
			for c := range set {
				targets = append(targets, c)
			}
		}
		sh.mu.RUnlock()
	}

	r.anonMu.Lock()
	for c := range r.anon {
		targets = append(targets, c)
	}
	r.anonMu.Unlock()

	for _, c := range targets {
		if err := c.PushPresence(online); err != nil {
			r.logger.Debug("presence push failed", "error", err)
		}
	}

	r.logger.Debug("presence broadcast", "online", len(online), "connections", len(targets))
}
