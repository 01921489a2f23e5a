package presence

import (
	"testing"

	"github.com/stretchr/testify/require"

	model "github.com/mbaig/relay/internal/model/relay"
)

func TestRegisterFirstBinding(t *testing.T) {
	r := NewRegistry()

	first := r.Register(model.User{ID: "u1", Name: "Uma"}, "c1")
	require.True(t, first, "first binding should signal the user became reachable")

	first = r.Register(model.User{ID: "u1"}, "c2")
	require.False(t, first, "second device must not re-signal reachability")

	require.ElementsMatch(t, []string{"c1", "c2"}, r.ConnectionsFor("u1"))
}

func TestRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry()

	r.Register(model.User{ID: "u1"}, "c1")
	r.Register(model.User{ID: "u1"}, "c1")

	require.Equal(t, []string{"c1"}, r.ConnectionsFor("u1"))
}

func TestUnregisterLastBinding(t *testing.T) {
	r := NewRegistry()
	r.Register(model.User{ID: "u1"}, "c1")
	r.Register(model.User{ID: "u1"}, "c2")

	userID, last, ok := r.Unregister("c1")
	require.True(t, ok)
	require.Equal(t, "u1", userID)
	require.False(t, last)
	require.Equal(t, []string{"c2"}, r.ConnectionsFor("u1"))

	userID, last, ok = r.Unregister("c2")
	require.True(t, ok)
	require.Equal(t, "u1", userID)
	require.True(t, last)
	require.Empty(t, r.ConnectionsFor("u1"))
	require.False(t, r.Reachable("u1"))
}

func TestRegisterRebindsConnectionToNewUser(t *testing.T) {
	r := NewRegistry()

	r.Register(model.User{ID: "u1"}, "c1")
	first := r.Register(model.User{ID: "u2"}, "c1")
	require.True(t, first)

	require.Empty(t, r.ConnectionsFor("u1"), "rebinding must release the old user's binding")
	require.False(t, r.Reachable("u1"))

	user, ok := r.UserFor("c1")
	require.True(t, ok)
	require.Equal(t, "u2", user.ID)

	userID, last, ok := r.Unregister("c1")
	require.True(t, ok)
	require.Equal(t, "u2", userID)
	require.True(t, last)
	require.False(t, r.Reachable("u2"))
}

func TestRebindKeepsOtherBindingsOfOldUser(t *testing.T) {
	r := NewRegistry()

	r.Register(model.User{ID: "u1"}, "c1")
	r.Register(model.User{ID: "u1"}, "c2")
	r.Register(model.User{ID: "u2"}, "c1")

	require.Equal(t, []string{"c2"}, r.ConnectionsFor("u1"))
	require.Equal(t, []string{"c1"}, r.ConnectionsFor("u2"))
	require.True(t, r.Reachable("u1"))
}

func TestUnregisterUnknownConnection(t *testing.T) {
	r := NewRegistry()

	_, _, ok := r.Unregister("nope")
	require.False(t, ok)
}

func TestUserForReverseLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(model.User{ID: "u1", Name: "Uma", Avatar: "a.png"}, "c1")

	user, ok := r.UserFor("c1")
	require.True(t, ok)
	require.Equal(t, "u1", user.ID)
	require.Equal(t, "Uma", user.Name)

	_, ok = r.UserFor("c2")
	require.False(t, ok)
}

func TestRemoteBindingsAreNotSendable(t *testing.T) {
	r := NewRegistry()

	r.ObserveRemote(model.PresenceEvent{
		UserID:   "u9",
		SocketID: "remote-1",
		Status:   model.PresenceConnected,
	})

	require.Empty(t, r.ConnectionsFor("u9"), "remote bindings must never become gateway targets")
	require.True(t, r.Reachable("u9"))

	r.ObserveRemote(model.PresenceEvent{UserID: "u9", Status: model.PresenceDisconnected})
	require.False(t, r.Reachable("u9"))
}

func TestRemoteDisconnectDropsAllRemoteBindings(t *testing.T) {
	r := NewRegistry()

	// u1 is connected through two other processes.
	r.ObserveRemote(model.PresenceEvent{UserID: "u1", SocketID: "r1", Status: model.PresenceConnected})
	r.ObserveRemote(model.PresenceEvent{UserID: "u1", SocketID: "r2", Status: model.PresenceConnected})

	// One of them releasing its last binding wipes the whole remote view;
	// the roster under-reports until u1's next presence event.
	r.ObserveRemote(model.PresenceEvent{UserID: "u1", Status: model.PresenceDisconnected})
	require.False(t, r.Reachable("u1"))
}

func TestObserveRemoteSkipsLocalEcho(t *testing.T) {
	r := NewRegistry()
	r.Register(model.User{ID: "u1"}, "c1")

	// Our own presence publish comes back from the broker.
	r.ObserveRemote(model.PresenceEvent{
		UserID:   "u1",
		SocketID: "c1",
		Status:   model.PresenceConnected,
	})

	_, last, ok := r.Unregister("c1")
	require.True(t, ok)
	require.True(t, last)
	require.False(t, r.Reachable("u1"), "echoed local binding must not linger as a remote one")
}

func TestOnlineUsersMergesLocalAndRemote(t *testing.T) {
	r := NewRegistry()
	r.Register(model.User{ID: "u1", Name: "Uma"}, "c1")
	r.ObserveRemote(model.PresenceEvent{
		UserID:   "u2",
		SocketID: "remote-1",
		Status:   model.PresenceConnected,
		Name:     "Vik",
	})

	users := r.OnlineUsers()
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	require.ElementsMatch(t, []string{"u1", "u2"}, ids)
}
