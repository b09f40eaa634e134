package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Session states. The machine is non-strict: any operation may drop a user
// back to awaiting_intent.
const (
	StateAwaitingIntent    = "awaiting_intent"
	StateSpecialtyResolved = "specialty_resolved"
	StateSlotsOffered      = "slots_offered"
	StateBookingConfirmed  = "booking_confirmed"
)

// TurnRecord is one entry in a user's append-only conversation log.
type TurnRecord struct {
	UserInput string    `json:"userInput,omitempty"`
	Operation string    `json:"operation,omitempty"`
	Result    *Result   `json:"result,omitempty"`
	Reply     string    `json:"reply,omitempty"`
	At        time.Time `json:"at"`
}

// SessionState carries the context a follow-up turn may rely on: the resolved
// specialty and the slots last offered to the user.
type SessionState struct {
	State          string    `json:"state"`
	SpecialtyID    int64     `json:"specialtyId,omitempty"`
	SpecialtyName  string    `json:"specialtyName,omitempty"`
	OfferedSlotIDs []int64   `json:"offeredSlotIds,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// HistoryStore keeps per-user ordered chat logs and session state in Redis.
// Appends within one user id preserve arrival order (RPUSH); across user ids
// there is no ordering relationship.
type HistoryStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewHistoryStore creates a store with the given retention TTL.
func NewHistoryStore(client *redis.Client, ttl time.Duration) *HistoryStore {
	if client == nil {
		panic("assistant: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &HistoryStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("clinic.internal.assistant.history"),
	}
}

// Append adds a turn to the end of the user's log and refreshes the TTL.
func (s *HistoryStore) Append(ctx context.Context, userID string, turn TurnRecord) error {
	ctx, span := s.tracer.Start(ctx, "assistant.append_turn")
	defer span.End()

	data, err := json.Marshal(turn)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("assistant: marshal turn: %w", err)
	}
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, historyKey(userID), data)
	pipe.Expire(ctx, historyKey(userID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("assistant: append turn: %w", err)
	}
	return nil
}

// ReadRecent returns up to n most recent turns, oldest first
// (most-recent-last). A user with no history yields an empty slice.
func (s *HistoryStore) ReadRecent(ctx context.Context, userID string, n int) ([]TurnRecord, error) {
	ctx, span := s.tracer.Start(ctx, "assistant.read_recent")
	defer span.End()

	if n <= 0 {
		return []TurnRecord{}, nil
	}
	raw, err := s.redis.LRange(ctx, historyKey(userID), int64(-n), -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("assistant: read history: %w", err)
	}
	turns := make([]TurnRecord, 0, len(raw))
	for _, item := range raw {
		var t TurnRecord
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("assistant: decode turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// SaveSession persists the session state under the user's key.
func (s *HistoryStore) SaveSession(ctx context.Context, userID string, state *SessionState) error {
	if state == nil {
		if err := s.redis.Del(ctx, sessionKey(userID)).Err(); err != nil {
			return fmt.Errorf("assistant: delete session: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("assistant: marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("assistant: persist session: %w", err)
	}
	return nil
}

// LoadSession returns the stored session state, or nil when none exists.
func (s *HistoryStore) LoadSession(ctx context.Context, userID string) (*SessionState, error) {
	data, err := s.redis.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("assistant: load session: %w", err)
	}
	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("assistant: decode session: %w", err)
	}
	return &state, nil
}

func historyKey(userID string) string {
	return fmt.Sprintf("chat:history:%s", userID)
}

func sessionKey(userID string) string {
	return fmt.Sprintf("chat:session:%s", userID)
}
