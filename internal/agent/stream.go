package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/sourcelens/coderag/internal/citation"
	"github.com/sourcelens/coderag/internal/llm"
	"github.com/sourcelens/coderag/internal/models"
	"github.com/sourcelens/coderag/internal/observability"
)

// EventType identifies a streamed event's role in the ordering guarantee
// action ≺ observation ≺ answer ≺ citation ≺ done (spec §5, §6.2).
type EventType string

const (
	EventAction      EventType = "action"
	EventObservation EventType = "observation"
	EventAnswer      EventType = "answer"
	EventCitation    EventType = "citation"
	EventDone        EventType = "done"
)

// observationTruncateLen is the cutoff for observation.content (spec §6.2).
const observationTruncateLen = 500

// maxStreamedCitations bounds the citation events emitted after the
// final answer (spec §4.7 Finalize, streaming path).
const maxStreamedCitations = 10

// Event is a single SSE payload (spec §6.2).
type Event struct {
	Type           EventType        `json:"type"`
	Content        string           `json:"content,omitempty"`
	Citation       *models.Citation `json:"citation,omitempty"`
	ConversationID string           `json:"conversationId,omitempty"`
}

type actionPayload struct {
	Tool  string `json:"tool"`
	Input string `json:"input"`
}

// HandleStream drives the streaming ReAct loop, invoking emit for every
// event in order. It never returns an error for a canceled context; the
// caller's emit is simply stopped being called (spec §7: "the endpoint
// ends quietly without an error event").
func (o *Orchestrator) HandleStream(ctx context.Context, req Request, emit func(Event)) (err error) {
	if ctx.Err() != nil {
		return nil
	}

	start := time.Now()
	conv, err := o.loadOrCreateConversation(ctx, req.ConversationID, req.RepositoryID)
	if err != nil {
		return err
	}

	ctx, span := observability.StartAgentSpan(ctx, conv.ID)
	defer span.End()
	observability.Audit().LogChatStart(ctx, conv.ID, req.RepositoryID, "stream")

	metrics := observability.Metrics()
	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	iterations := 0
	isComplete := false
	defer func() {
		observability.RecordAgentTurn(span, iterations, isComplete)
		observability.RecordError(span, err)
		metrics.RecordAgentTurn(time.Since(start), iterations, isComplete, err)
		if err != nil {
			observability.Audit().LogChatError(ctx, conv.ID, err)
			return
		}
		observability.Audit().LogChatComplete(ctx, conv.ID, time.Since(start), iterations, isComplete)
	}()

	userMsg := models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   req.Message,
		Timestamp: time.Now(),
	}
	conv.Messages = append(conv.Messages, userMsg)

	prompt := &llm.Prompt{
		SystemPrompt: systemPrompt,
		Messages:     toLLMMessages(historyTail(conv.Messages, historyTailSize)),
	}

	var toolResults []string
	toolDefs := o.registry.ToolDefs()
	var lastContent string
	exhausted := true

	for iter := 0; iter < o.maxIterations; iter++ {
		if ctx.Err() != nil {
			return nil
		}
		iterations = iter + 1

		resp, chatErr := o.provider.Chat(ctx, prompt, toolDefs, nil)
		if chatErr != nil {
			if ctx.Err() != nil {
				return nil
			}
			err = chatErr
			return err
		}

		if len(resp.ToolCalls) == 0 {
			exhausted = false
			break
		}

		prompt.Messages = append(prompt.Messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			if ctx.Err() != nil {
				return nil
			}

			actionJSON, _ := json.Marshal(actionPayload{Tool: call.Name, Input: call.Arguments})
			emit(Event{Type: EventAction, Content: string(actionJSON)})

			observation := o.executeTool(ctx, call, conv.ID, req.RepositoryID)
			toolResults = append(toolResults, observation)

			emit(Event{Type: EventObservation, Content: truncateObservation(observation)})

			prompt.Messages = append(prompt.Messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    observation,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
	}

	if exhausted {
		lastContent = "I could not complete this request within the allowed number of steps. Please try rephrasing or narrowing your question."
	} else {
		isComplete = true
		// Discard the deciding call's content and stream a fresh
		// completion for the final answer (spec §4.7 Finalize).
		lastContent, err = o.streamAnswer(ctx, prompt, emit)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}

	grounded := citation.Ground(llm.StripThinkingTags(lastContent), toolResults)

	conv.Messages = append(conv.Messages, models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		Content:   grounded.Content,
		Timestamp: time.Now(),
	})
	conv.UpdatedAt = time.Now()

	if o.conversations != nil {
		if upsertErr := o.conversations.Upsert(ctx, *conv); upsertErr != nil {
			err = upsertErr
			return err
		}
	}

	n := len(grounded.Citations)
	if n > maxStreamedCitations {
		n = maxStreamedCitations
	}
	for i := 0; i < n; i++ {
		c := grounded.Citations[i]
		emit(Event{Type: EventCitation, Citation: &c})
	}

	emit(Event{Type: EventDone, ConversationID: conv.ID})
	return nil
}

// streamAnswer issues a follow-up streamChat call for the final answer
// once the tool loop has produced observations, emitting each fragment
// as an answer event (spec §4.7 Finalize, streaming path).
func (o *Orchestrator) streamAnswer(ctx context.Context, prompt *llm.Prompt, emit func(Event)) (string, error) {
	fragments, err := o.provider.StreamChat(ctx, prompt, nil)
	if err != nil {
		return "", err
	}

	var full string
	for frag := range fragments {
		if frag.Err != nil {
			return full, frag.Err
		}
		if frag.Text != "" {
			full += frag.Text
			emit(Event{Type: EventAnswer, Content: frag.Text})
		}
		if frag.Done {
			break
		}
	}
	return full, nil
}

func truncateObservation(s string) string {
	if len(s) <= observationTruncateLen {
		return s
	}
	return s[:observationTruncateLen] + "..."
}
