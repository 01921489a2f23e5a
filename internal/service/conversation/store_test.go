package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	model "github.com/mbaig/relay/internal/model/relay"
)

func TestRecordCreatesConversation(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	conv := s.Record(ctx, model.Message{
		ID:             "m1",
		SenderID:       "u1",
		ConversationID: "c1",
		Text:           "hi",
		Timestamp:      100,
		Status:         model.StatusSent,
	})

	require.Equal(t, "c1", conv.ID)
	require.Equal(t, []string{"u1"}, conv.Participants)
	require.NotNil(t, conv.LastMessage)
	require.Equal(t, "hi", conv.LastMessage.Text)
}

func TestRecordGrowsParticipantsNeverShrinks(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	s.Record(ctx, model.Message{ID: "m1", SenderID: "u1", ConversationID: "c1", Timestamp: 1})
	conv := s.Record(ctx, model.Message{ID: "m2", SenderID: "u2", ConversationID: "c1", Timestamp: 2})
	require.Equal(t, []string{"u1", "u2"}, conv.Participants)

	// A third message from a known sender replaces the last message only.
	conv = s.Record(ctx, model.Message{ID: "m3", SenderID: "u1", ConversationID: "c1", Text: "again", Timestamp: 3})
	require.Equal(t, []string{"u1", "u2"}, conv.Participants)
	require.Equal(t, "m3", conv.LastMessage.ID)
}

func TestRecordSameMessageTwice(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	msg := model.Message{ID: "m1", SenderID: "u1", ConversationID: "c1", Timestamp: 1}
	s.Record(ctx, msg)
	conv := s.Record(ctx, msg)

	require.Equal(t, []string{"u1"}, conv.Participants)
	require.Equal(t, "m1", conv.LastMessage.ID)
}

func TestForUserFiltersByParticipation(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	s.Record(ctx, model.Message{ID: "m1", SenderID: "u1", ConversationID: "c1", Timestamp: 1})
	s.Record(ctx, model.Message{ID: "m2", SenderID: "u2", ConversationID: "c2", Timestamp: 2})
	s.Record(ctx, model.Message{ID: "m3", SenderID: "u1", ConversationID: "c2", Timestamp: 3})

	convs := s.ForUser(ctx, "u1")
	require.Len(t, convs, 2)
	// Most recent last message first.
	require.Equal(t, "c2", convs[0].ID)
	require.Equal(t, "c1", convs[1].ID)

	convs = s.ForUser(ctx, "u2")
	require.Len(t, convs, 1)
	require.Equal(t, "c2", convs[0].ID)
}

func TestForUserUnknownUser(t *testing.T) {
	s := NewStore()

	convs := s.ForUser(context.Background(), "nobody")
	require.Empty(t, convs)
}

func TestSnapshotsDoNotAliasStoreState(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	conv := s.Record(ctx, model.Message{ID: "m1", SenderID: "u1", ConversationID: "c1", Timestamp: 1})
	conv.Participants[0] = "mutated"
	conv.LastMessage.Text = "mutated"

	fresh := s.ForUser(ctx, "u1")
	require.Len(t, fresh, 1)
	require.Equal(t, []string{"u1"}, fresh[0].Participants)
	require.Empty(t, fresh[0].LastMessage.Text)
}
