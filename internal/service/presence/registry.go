package presence

import (
	"sync"

	"github.com/samber/lo"

	model "github.com/mbaig/relay/internal/model/relay"
)

type set map[string]struct{}

// Registry tracks which users are reachable and through which connections.
// Bindings owned by this process live in a separate table from bindings
// learned off the broker: only local bindings are valid gateway send targets,
// remote ones exist purely to answer "is this user online anywhere".
//
// Registry is safe for concurrent use by multiple goroutines.
type Registry struct {
	mu     sync.RWMutex
	local  map[string]set        // userID -> connection ids owned by this process
	owners map[string]string     // connection id -> userID, local bindings only
	remote map[string]set        // userID -> connection ids seen on the broker
	users  map[string]model.User // display metadata, last announcement wins
}

func NewRegistry() *Registry {
	return &Registry{
		local:  make(map[string]set),
		owners: make(map[string]string),
		remote: make(map[string]set),
		users:  make(map[string]model.User),
	}
}

// Register idempotently binds a local connection to a user. It reports
// whether the user had no local bindings before this call, i.e. whether the
// user just became reachable on this process.
func (r *Registry) Register(user model.User, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A connection re-identifying as a different user rebinds: the old
	// user's binding is released first so no user ever keeps a connection
	// it no longer owns.
	if prev, ok := r.owners[connID]; ok && prev != user.ID {
		r.releaseLocked(prev, connID)
	}

	conns, ok := r.local[user.ID]
	if !ok {
		conns = make(set)
		r.local[user.ID] = conns
	}
	first := len(conns) == 0
	conns[connID] = struct{}{}
	r.owners[connID] = user.ID
	r.users[user.ID] = user
	return first
}

// Unregister releases a local connection binding regardless of which user
// owns it. It returns the owning user id and whether this was the user's
// last local binding. ok is false when the connection was never registered.
func (r *Registry) Unregister(connID string) (userID string, last bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok = r.owners[connID]
	if !ok {
		return "", false, false
	}
	return userID, r.releaseLocked(userID, connID), true
}

// releaseLocked drops one local binding and, when it was the user's last,
// the user's registry entry. Callers hold r.mu.
func (r *Registry) releaseLocked(userID, connID string) (last bool) {
	delete(r.owners, connID)

	conns := r.local[userID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.local, userID)
		last = true
		if _, elsewhere := r.remote[userID]; !elsewhere {
			delete(r.users, userID)
		}
	}
	return last
}

// ConnectionsFor returns the local, sendable connection ids bound to a user.
// Remote bindings are never included.
func (r *Registry) ConnectionsFor(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.local[userID])
}

// LocalConnections returns every connection id owned by this process.
func (r *Registry) LocalConnections() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.owners)
}

// UserFor answers the reverse lookup: which user does a local connection
// represent.
func (r *Registry) UserFor(connID string) (model.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.owners[connID]
	if !ok {
		return model.User{}, false
	}
	return r.users[userID], true
}

// ObserveRemote folds a broker presence event into the remote view. Events
// whose connection id is owned locally are echoes of this process's own
// publishes and are skipped, keeping the remote table strictly remote.
func (r *Registry) ObserveRemote(ev model.PresenceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Status {
	case model.PresenceConnected:
		if ev.UserID == "" || ev.SocketID == "" {
			return
		}
		if _, ours := r.owners[ev.SocketID]; ours {
			return
		}
		conns, ok := r.remote[ev.UserID]
		if !ok {
			conns = make(set)
			r.remote[ev.UserID] = conns
		}
		conns[ev.SocketID] = struct{}{}
		if _, known := r.users[ev.UserID]; !known || ev.Name != "" {
			r.users[ev.UserID] = ev.User()
		}
	case model.PresenceDisconnected:
		// The event does not say which bindings ended, so every remote one
		// is dropped, even though the publisher only knows about its own
		// process. A user still connected through a third process goes dark
		// in this view until their next presence event: the roster can
		// under-report, never over-report.
		delete(r.remote, ev.UserID)
		if _, here := r.local[ev.UserID]; !here {
			delete(r.users, ev.UserID)
		}
	}
}

// Reachable reports whether the user holds at least one binding anywhere in
// the cluster, local or remote.
func (r *Registry) Reachable(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, here := r.local[userID]
	_, there := r.remote[userID]
	return here || there
}

// OnlineUsers snapshots the display metadata of every reachable user.
func (r *Registry) OnlineUsers() []model.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := lo.Union(lo.Keys(r.local), lo.Keys(r.remote))
	return lo.Map(ids, func(id string, _ int) model.User {
		return r.users[id]
	})
}
