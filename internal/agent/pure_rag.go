package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sourcelens/coderag/internal/llm"
	"github.com/sourcelens/coderag/internal/models"
	"github.com/sourcelens/coderag/internal/observability"
	"github.com/sourcelens/coderag/internal/retrieval"
)

// pureRAGTopK is the number of hybrid-search hits folded into the
// single-shot context (spec §9: "calls the model once with a context
// built from hybrid search").
const pureRAGTopK = 8

// handlePureRAG is the optional degradation named in the specification's
// open question: skip the tool loop entirely, run one hybrid search,
// and answer in a single model call, returning the same AgentResponse
// shape as the ReAct path.
func (o *Orchestrator) handlePureRAG(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	conv, err := o.loadOrCreateConversation(ctx, req.ConversationID, req.RepositoryID)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartAgentSpan(ctx, conv.ID)
	defer span.End()
	observability.Audit().LogChatStart(ctx, conv.ID, req.RepositoryID, string(ModePureRAG))

	conv.Messages = append(conv.Messages, models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   req.Message,
		Timestamp: time.Now(),
	})

	searchStart := time.Now()
	_, retrievalSpan := observability.StartRetrievalSpan(ctx, req.RepositoryID, req.Message)
	results, err := o.retriever.HybridSearch(ctx, req.RepositoryID, req.Message, nil, pureRAGTopK)
	observability.RecordRetrievalResult(retrievalSpan, len(results))
	observability.RecordError(retrievalSpan, err)
	retrievalSpan.End()
	observability.Metrics().RecordHybridSearch(time.Since(searchStart))
	if err != nil {
		observability.Audit().LogChatError(ctx, conv.ID, err)
		return nil, err
	}

	var toolResults []string
	var contextBlocks strings.Builder
	for _, r := range results {
		block := formatPureRAGResult(r)
		toolResults = append(toolResults, block)
		contextBlocks.WriteString(block)
		contextBlocks.WriteString("\n\n")
	}

	prompt := &llm.Prompt{
		SystemPrompt: systemPrompt,
		Messages: append(
			toLLMMessages(historyTail(conv.Messages, historyTailSize)),
			llm.Message{
				Role:    llm.RoleUser,
				Content: fmt.Sprintf("Relevant code context:\n\n%s\nAnswer the question using only this context.", contextBlocks.String()),
			},
		),
	}

	resp, err := o.provider.Chat(ctx, prompt, nil, nil)
	if err != nil {
		observability.RecordError(span, err)
		observability.Audit().LogChatError(ctx, conv.ID, err)
		return nil, err
	}

	final, err := o.finalize(ctx, conv, resp.Content, toolResults, nil, true)
	observability.RecordAgentTurn(span, 1, true)
	observability.Metrics().RecordAgentTurn(time.Since(start), 1, true, err)
	if err != nil {
		observability.Audit().LogChatError(ctx, conv.ID, err)
	} else {
		observability.Audit().LogChatComplete(ctx, conv.ID, time.Since(start), 1, true)
	}
	return final, err
}

// formatPureRAGResult mirrors the code_search tool's header-block format
// (spec §4.6) so the citation service can extract references from it
// identically regardless of orchestration mode.
func formatPureRAGResult(r retrieval.Result) string {
	return fmt.Sprintf("--- [%s:%d-%d] (type: %s, symbol: %s) [Score: %.4f] ---\n```%s\n%s\n```",
		r.Chunk.FilePath, r.Chunk.StartLine, r.Chunk.EndLine, r.Chunk.ChunkType, r.Chunk.SymbolName, r.Score, r.Chunk.Language, r.Chunk.Content)
}
