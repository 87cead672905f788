package agent

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sourcelens/coderag/internal/llm"
	"github.com/sourcelens/coderag/internal/models"
	"github.com/sourcelens/coderag/internal/observability"
)

// Handle drives the non-streaming ReAct loop for req and returns the
// grounded response (spec §4.7 Finalize, non-streaming path).
func (o *Orchestrator) Handle(ctx context.Context, req Request) (resp *Response, err error) {
	if req.Mode == ModePureRAG {
		return o.handlePureRAG(ctx, req)
	}

	start := time.Now()
	conv, err := o.loadOrCreateConversation(ctx, req.ConversationID, req.RepositoryID)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartAgentSpan(ctx, conv.ID)
	defer span.End()
	observability.Audit().LogChatStart(ctx, conv.ID, req.RepositoryID, string(ModeReAct))

	iterations := 0
	defer func() {
		isComplete := resp != nil && resp.IsComplete
		observability.RecordAgentTurn(span, iterations, isComplete)
		observability.RecordError(span, err)
		observability.Metrics().RecordAgentTurn(time.Since(start), iterations, isComplete, err)
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
	var steps []ReasoningStep
	toolDefs := o.registry.ToolDefs()

	for iter := 0; iter < o.maxIterations; iter++ {
		iterations = iter + 1
		llmResp, chatErr := o.provider.Chat(ctx, prompt, toolDefs, nil)
		if chatErr != nil {
			err = chatErr
			return nil, err
		}

		if len(llmResp.ToolCalls) == 0 {
			resp, err = o.finalize(ctx, conv, llmResp.Content, toolResults, steps, true)
			return resp, err
		}

		assistantMsg := models.ChatMessage{
			ID:        uuid.NewString(),
			Role:      models.RoleAssistant,
			Content:   llmResp.Content,
			Timestamp: time.Now(),
			ToolCalls: toModelToolCalls(llmResp.ToolCalls),
		}
		conv.Messages = append(conv.Messages, assistantMsg)
		prompt.Messages = append(prompt.Messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   llmResp.Content,
			ToolCalls: llmResp.ToolCalls,
		})

		for _, call := range llmResp.ToolCalls {
			observation := o.executeTool(ctx, call, conv.ID, req.RepositoryID)
			toolResults = append(toolResults, observation)

			steps = append(steps, ReasoningStep{
				StepNumber:  len(steps) + 1,
				Thought:     llmResp.Content,
				Action:      call.Name,
				ActionInput: call.Arguments,
				Observation: observation,
			})

			toolMsg := models.ChatMessage{
				ID:         uuid.NewString(),
				Role:       models.RoleTool,
				Content:    observation,
				Timestamp:  time.Now(),
				ToolCallID: call.ID,
				ToolName:   call.Name,
			}
			conv.Messages = append(conv.Messages, toolMsg)
			prompt.Messages = append(prompt.Messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    observation,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
	}

	resp, err = o.finalize(ctx, conv, "I could not complete this request within the allowed number of steps. Please try rephrasing or narrowing your question.", toolResults, steps, false)
	return resp, err
}

// executeTool runs a single tool call inside its own span, recording
// its duration and error status on the metrics registry and audit log
// (spec §4.6: C6).
func (o *Orchestrator) executeTool(ctx context.Context, call llm.ToolCall, conversationID, repositoryID string) string {
	start := time.Now()
	ctx, span := observability.StartToolSpan(ctx, call.Name, repositoryID)
	defer span.End()

	observation := o.registry.Execute(ctx, call.Name, call.Arguments, repositoryID)
	isError := strings.HasPrefix(observation, "Error:")

	observability.RecordToolResult(span, isError)
	observability.Metrics().RecordToolCall(isError)
	observability.Audit().LogToolCall(ctx, conversationID, repositoryID, call.Name, isError, time.Since(start))

	return observation
}

// finalize grounds content against the accumulated tool results, appends
// the final assistant turn to the conversation, persists it, and builds
// the Response.
func (o *Orchestrator) finalize(ctx context.Context, conv *models.ConversationContext, content string, toolResults []string, steps []ReasoningStep, isComplete bool) (*Response, error) {
	grounded, citations := groundToCitations(llm.StripThinkingTags(content), toolResults)

	conv.Messages = append(conv.Messages, models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		Content:   grounded,
		Timestamp: time.Now(),
	})
	conv.UpdatedAt = time.Now()

	if o.conversations != nil {
		if err := o.conversations.Upsert(ctx, *conv); err != nil {
			return nil, err
		}
	}

	return &Response{
		ConversationID: conv.ID,
		Content:        grounded,
		Citations:      citations,
		ReasoningSteps: steps,
		IsComplete:     isComplete,
	}, nil
}

func toModelToolCalls(calls []llm.ToolCall) []models.ToolCall {
	out := make([]models.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, models.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments})
	}
	return out
}
