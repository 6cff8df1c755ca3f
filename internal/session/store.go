package session

import (
	"context"
	"encoding/json"

	"github.com/Bambaleylo21/rpl-predictions-bot/internal/models"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/service"
)

// Store persists per-chat wizard state between updates, so an unfinished
// flow survives a bot restart.
type Store struct {
	sessions service.SessionService
}

func NewStore(sessions service.SessionService) *Store {
	return &Store{sessions: sessions}
}

// Load fetches the chat's session and unmarshals the stored state into
// stateOut when both are present. A missing session is (nil, nil).
func (s *Store) Load(ctx context.Context, chatID int64, stateOut any) (*models.ChatSession, error) {
	session, err := s.sessions.Get(ctx, chatID)
	if err != nil || session == nil {
		return session, err
	}
	if stateOut != nil && len(session.FlowState) > 0 {
		if err := json.Unmarshal(session.FlowState, stateOut); err != nil {
			return nil, err
		}
	}
	return session, nil
}

func (s *Store) Save(ctx context.Context, chatID int64, flow string, state any) error {
	var payload []byte
	if state != nil {
		buf, err := json.Marshal(state)
		if err != nil {
			return err
		}
		payload = buf
	}
	var flowPtr *string
	if flow != "" {
		flowPtr = &flow
	}
	return s.sessions.Save(ctx, models.ChatSession{
		ChatID:      chatID,
		CurrentFlow: flowPtr,
		FlowState:   payload,
	})
}

func (s *Store) Clear(ctx context.Context, chatID int64) error {
	return s.sessions.Delete(ctx, chatID)
}
