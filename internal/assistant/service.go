package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/superclinic/clinic-assistant/internal/observability/metrics"
	"github.com/superclinic/clinic-assistant/pkg/logging"
)

const defaultSystemPrompt = `You are the appointment assistant for Super Clinic.
Help users view doctors, check availability, and book appointments using the available tools.
Always fetch doctor and slot data through the tools; never invent it.
Before booking, confirm the patient's name, email, and phone number are all provided.
If a requested slot is unavailable, offer the alternative slots returned by the tools.
If a booking reports a conflict, tell the user the slot was just taken and offer to re-check availability.
For anything unrelated to doctor appointments, explain that you can only help with scheduling.
After a successful booking reply: "Your appointment is confirmed with [doctor] on [date] at [time]. Your booking ID is [bookingId]."`

// maxToolRounds bounds the oracle loop so a misbehaving model cannot spin on
// tool calls forever.
const maxToolRounds = 6

// ErrOracleExhausted indicates the oracle never produced a final reply.
var ErrOracleExhausted = errors.New("assistant: oracle exhausted tool rounds")

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Service drives one chat turn: it replays recent history to the intent
// oracle, executes the tool calls the oracle selects through the
// orchestrator, and returns the oracle's final reply.
type Service struct {
	client      chatClient
	orch        *Orchestrator
	history     *HistoryStore
	model       string
	recentTurns int
	logger      *logging.Logger
	metrics     *metrics.EngineMetrics
}

// NewService creates the chat service.
func NewService(client chatClient, orch *Orchestrator, history *HistoryStore, model string, recentTurns int, logger *logging.Logger, em *metrics.EngineMetrics) *Service {
	if client == nil {
		panic("assistant: chat client cannot be nil")
	}
	if orch == nil {
		panic("assistant: orchestrator cannot be nil")
	}
	if history == nil {
		panic("assistant: history store cannot be nil")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if recentTurns <= 0 {
		recentTurns = 20
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		client:      client,
		orch:        orch,
		history:     history,
		model:       model,
		recentTurns: recentTurns,
		logger:      logger,
		metrics:     em,
	}
}

// Chat processes one user message end to end.
func (s *Service) Chat(ctx context.Context, userID, userMessage string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("assistant: user id is required")
	}
	if strings.TrimSpace(userMessage) == "" {
		return "", errors.New("assistant: user message is required")
	}

	messages := s.contextMessages(ctx, userID)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userMessage,
	})

	pendingInput := userMessage
	executedTools := false

	for round := 0; round < maxToolRounds; round++ {
		start := time.Now()
		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    s.model,
			Messages: messages,
			Tools:    toolDefinitions(),
		})
		s.metrics.ObserveOracleLatency(time.Since(start).Seconds())
		if err != nil {
			return "", fmt.Errorf("assistant: oracle call: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("assistant: oracle returned no choices")
		}
		choice := resp.Choices[0].Message

		if len(choice.ToolCalls) == 0 {
			reply := choice.Content
			turn := TurnRecord{Reply: reply, At: time.Now().UTC()}
			if !executedTools {
				turn.UserInput = userMessage
			}
			if err := s.history.Append(ctx, userID, turn); err != nil {
				s.logger.Error("failed to record reply", "error", err, "user_id", userID)
			}
			return reply, nil
		}

		messages = append(messages, choice)
		for _, call := range choice.ToolCalls {
			if call.Type != openai.ToolTypeFunction {
				continue
			}
			args := map[string]any{}
			if raw := call.Function.Arguments; raw != "" {
				if err := json.Unmarshal([]byte(raw), &args); err != nil {
					s.logger.Warn("malformed tool arguments", "tool", call.Function.Name, "error", err)
					args = map[string]any{}
				}
			}

			result := s.orch.Execute(ctx, userID, pendingInput, call.Function.Name, args)
			pendingInput = ""
			executedTools = true

			payload, err := json.Marshal(result)
			if err != nil {
				return "", fmt.Errorf("assistant: encode tool result: %w", err)
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    string(payload),
			})
		}
	}

	return "", ErrOracleExhausted
}

// contextMessages rebuilds the oracle context from the recent turn log.
func (s *Service) contextMessages(ctx context.Context, userID string) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: defaultSystemPrompt},
	}

	turns, err := s.history.ReadRecent(ctx, userID, s.recentTurns)
	if err != nil {
		// A cold context is better than failing the turn.
		s.logger.Warn("failed to read history", "error", err, "user_id", userID)
		return messages
	}
	for _, t := range turns {
		if t.UserInput != "" {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: t.UserInput,
			})
		}
		if t.Result != nil {
			if payload, err := json.Marshal(t.Result); err == nil {
				messages = append(messages, openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: fmt.Sprintf("[%s result] %s", t.Operation, payload),
				})
			}
		}
		if t.Reply != "" {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: t.Reply,
			})
		}
	}
	return messages
}
