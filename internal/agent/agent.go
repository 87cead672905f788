// Package agent implements the bounded tool-calling orchestrator (spec
// §4.7: C7) that drives a conversation turn from a user message to a
// grounded answer, plus the pure-RAG degradation described in the
// specification's open question. Grounded on the teacher's
// internal/agents.Agent/AgentContext/AgentResult trio: a small
// interface plus a context struct carrying shared resources, adapted
// from a one-shot pipeline stage to a resumable per-conversation loop.
package agent

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sourcelens/coderag/internal/agent/tools"
	"github.com/sourcelens/coderag/internal/citation"
	"github.com/sourcelens/coderag/internal/llm"
	"github.com/sourcelens/coderag/internal/models"
	"github.com/sourcelens/coderag/internal/retrieval"
	"github.com/sourcelens/coderag/internal/store"
)

// MaxIterations bounds the ReAct loop (spec §4.7, §8).
const MaxIterations = 10

// historyTailSize is how many prior turns are delivered to the model
// (spec §4.7): "truncated to the last 10 turns (user/assistant roles only)".
const historyTailSize = 10

// Mode selects the orchestration strategy for a single request.
type Mode string

const (
	// ModeReAct is the canonical tool-using loop.
	ModeReAct Mode = "react"
	// ModePureRAG skips the loop: one hybrid search, one chat call.
	ModePureRAG Mode = "pure_rag"
)

// Request is a single inbound chat turn.
type Request struct {
	Message        string
	RepositoryID   string
	ConversationID string // empty starts a new conversation
	Mode           Mode   // empty defaults to ModeReAct
}

// ReasoningStep records one loop iteration's tool invocation for the
// non-streaming response (spec §4.7).
type ReasoningStep struct {
	StepNumber  int    `json:"stepNumber"`
	Thought     string `json:"thought"`
	Action      string `json:"action"`
	ActionInput string `json:"actionInput"`
	Observation string `json:"observation"`
}

// Response is the AgentResponse shape returned by both orchestration
// modes (spec §6.1).
type Response struct {
	ConversationID string             `json:"conversationId"`
	Content        string             `json:"content"`
	Citations      []models.Citation  `json:"citations"`
	ReasoningSteps []ReasoningStep    `json:"reasoningSteps,omitempty"`
	IsComplete     bool               `json:"isComplete"`
}

// Orchestrator wires a provider, tool catalogue, retriever, and
// conversation store into the bounded agent loop.
type Orchestrator struct {
	provider      llm.Provider
	registry      *tools.Registry
	retriever     *retrieval.Retriever
	conversations store.ConversationStore
	maxIterations int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxIterations overrides MaxIterations, chiefly for tests
// exercising exhaustion behavior (spec §8 scenario 6).
func WithMaxIterations(n int) Option {
	return func(o *Orchestrator) { o.maxIterations = n }
}

// New creates an Orchestrator.
func New(provider llm.Provider, registry *tools.Registry, retriever *retrieval.Retriever, conversations store.ConversationStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:      provider,
		registry:      registry,
		retriever:     retriever,
		conversations: conversations,
		maxIterations: MaxIterations,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

const systemPrompt = "You are a code assistant answering questions about a specific software repository. " +
	"Use the available tools to inspect the codebase before answering. " +
	"Ground every factual claim about the code in a tool result and reference locations as [path:startLine-endLine]."

// loadOrCreateConversation fetches an existing conversation by id, or
// starts a fresh one keyed by req.ConversationID (generating an id when
// none was supplied).
func (o *Orchestrator) loadOrCreateConversation(ctx context.Context, convID, repositoryID string) (*models.ConversationContext, error) {
	if convID != "" && o.conversations != nil {
		existing, err := o.conversations.Get(ctx, convID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}
	id := convID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	return &models.ConversationContext{
		ID:           id,
		RepositoryID: repositoryID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// historyTail returns the last n messages restricted to user/assistant
// roles, preserving order (spec §4.7).
func historyTail(messages []models.ChatMessage, n int) []models.ChatMessage {
	var filtered []models.ChatMessage
	for _, m := range messages {
		if m.Role == models.RoleUser || m.Role == models.RoleAssistant {
			filtered = append(filtered, m)
		}
	}
	if len(filtered) <= n {
		return filtered
	}
	return filtered[len(filtered)-n:]
}

func toLLMMessages(history []models.ChatMessage) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		out = append(out, llm.Message{
			Role:    llm.Role(m.Role),
			Content: m.Content,
		})
	}
	return out
}

// groundToCitations adapts citation.Ground's output onto a Response.
func groundToCitations(content string, toolResults []string) (string, []models.Citation) {
	g := citation.Ground(content, toolResults)
	if g.Citations == nil {
		g.Citations = []models.Citation{}
	}
	return g.Content, g.Citations
}
