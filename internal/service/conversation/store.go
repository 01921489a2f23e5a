package conversation

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/lo"

	model "github.com/mbaig/relay/internal/model/relay"
)

// Store is the process-local projection of conversations, rebuilt from the
// message stream it observes. It is not authoritative and not durable; the
// projection is lost on restart and grows for the lifetime of the process.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
}

// NewStore bootstraps an empty in-memory projection.
func NewStore() *Store {
	return &Store{conversations: make(map[string]*model.Conversation)}
}

// Record folds a message into the projection. An unknown conversation id
// creates a conversation whose participant set is exactly the sender; a known
// one gets its last message replaced and the sender added if absent.
// Recording the same message twice is harmless, so the originating process
// can apply optimistically before the broker echoes it back.
func (s *Store) Record(_ context.Context, msg model.Message) model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		conv = &model.Conversation{
			ID:           msg.ConversationID,
			Participants: []string{msg.SenderID},
		}
		s.conversations[msg.ConversationID] = conv
	} else if !lo.Contains(conv.Participants, msg.SenderID) {
		conv.Participants = append(conv.Participants, msg.SenderID)
	}
	conv.LastMessage = &msg

	return snapshot(conv)
}

// ForUser returns every conversation the user participates in, most recent
// last message first.
func (s *Store) ForUser(_ context.Context, userID string) []model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Conversation, 0)
	for _, conv := range s.conversations {
		if lo.Contains(conv.Participants, userID) {
			result = append(result, snapshot(conv))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.LastMessage.Timestamp != b.LastMessage.Timestamp {
			return a.LastMessage.Timestamp > b.LastMessage.Timestamp
		}
		return a.ID < b.ID
	})
	return result
}

// snapshot copies a conversation so callers never alias store-owned state.
func snapshot(conv *model.Conversation) model.Conversation {
	out := model.Conversation{
		ID:           conv.ID,
		Participants: make([]string, len(conv.Participants)),
	}
	copy(out.Participants, conv.Participants)
	if conv.LastMessage != nil {
		last := *conv.LastMessage
		out.LastMessage = &last
	}
	return out
}
