// Package observability provides audit logging for compliance tracking.
package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// AuditEventType categorizes audit events.
type AuditEventType string

const (
	AuditEventChatStart         AuditEventType = "chat.start"
	AuditEventChatComplete      AuditEventType = "chat.complete"
	AuditEventChatError         AuditEventType = "chat.error"
	AuditEventLLMRequest        AuditEventType = "llm.request"
	AuditEventLLMResponse       AuditEventType = "llm.response"
	AuditEventLLMError          AuditEventType = "llm.error"
	AuditEventToolCall          AuditEventType = "tool.call"
	AuditEventIngestionStart    AuditEventType = "ingestion.start"
	AuditEventIngestionComplete AuditEventType = "ingestion.complete"
	AuditEventIngestionError    AuditEventType = "ingestion.error"
	AuditEventRepositoryCreate  AuditEventType = "repository.create"
	AuditEventRepositoryDelete  AuditEventType = "repository.delete"
)

// AuditEvent represents a single audit log entry.
type AuditEvent struct {
	Timestamp      time.Time              `json:"timestamp"`
	EventType      AuditEventType         `json:"event_type"`
	SessionID      string                 `json:"session_id"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	RepositoryID   string                 `json:"repository_id,omitempty"`
	UserID         string                 `json:"user_id,omitempty"`
	Success        bool                   `json:"success"`
	Duration       time.Duration          `json:"duration_ms,omitempty"`
	Message        string                 `json:"message,omitempty"`
	Details        map[string]interface{} `json:"details,omitempty"`
	ErrorCode      string                 `json:"error_code,omitempty"`
	ErrorDetail    string                 `json:"error_detail,omitempty"`
}

// AuditLogger handles audit event logging.
type AuditLogger struct {
	mu        sync.Mutex
	writer    io.Writer
	sessionID string
	userID    string
	enabled   bool
}

// AuditConfig configures the audit logger.
type AuditConfig struct {
	Enabled    bool
	OutputPath string // File path or "stdout"/"stderr"
	SessionID  string
	UserID     string
}

// DefaultAuditConfig returns default audit configuration.
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		Enabled:    true,
		OutputPath: "stdout",
	}
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(config *AuditConfig) (*AuditLogger, error) {
	if config == nil {
		config = DefaultAuditConfig()
	}

	var writer io.Writer
	switch config.OutputPath {
	case "stdout", "":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		f, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		writer = f
	}

	sessionID := config.SessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("session-%d", time.Now().UnixNano())
	}

	return &AuditLogger{
		writer:    writer,
		sessionID: sessionID,
		userID:    config.UserID,
		enabled:   config.Enabled,
	}, nil
}

// Log writes an audit event.
func (l *AuditLogger) Log(event *AuditEvent) error {
	if !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Fill in defaults
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.SessionID == "" {
		event.SessionID = l.sessionID
	}
	if event.UserID == "" {
		event.UserID = l.userID
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	_, err = fmt.Fprintf(l.writer, "%s\n", data)
	return err
}

// LogChatStart logs the start of an agent chat turn (spec §4.7: C7).
func (l *AuditLogger) LogChatStart(ctx context.Context, conversationID, repositoryID, mode string) {
	l.Log(&AuditEvent{
		EventType:      AuditEventChatStart,
		ConversationID: conversationID,
		RepositoryID:   repositoryID,
		Success:        true,
		Message:        fmt.Sprintf("chat turn started in mode %s", mode),
		Details: map[string]interface{}{
			"mode": mode,
		},
	})
}

// LogChatComplete logs the completion of an agent chat turn.
func (l *AuditLogger) LogChatComplete(ctx context.Context, conversationID string, duration time.Duration, iterations int, isComplete bool) {
	l.Log(&AuditEvent{
		EventType:      AuditEventChatComplete,
		ConversationID: conversationID,
		Success:        isComplete,
		Duration:       duration,
		Message:        fmt.Sprintf("chat turn completed after %d iterations", iterations),
		Details: map[string]interface{}{
			"iterations":  iterations,
			"is_complete": isComplete,
		},
	})
}

// LogChatError logs an agent chat turn failure.
func (l *AuditLogger) LogChatError(ctx context.Context, conversationID string, err error) {
	l.Log(&AuditEvent{
		EventType:      AuditEventChatError,
		ConversationID: conversationID,
		Success:        false,
		Message:        "chat turn failed",
		ErrorDetail:    err.Error(),
	})
}

// LogLLMRequest logs an LLM request event (spec §4.1: C1).
func (l *AuditLogger) LogLLMRequest(ctx context.Context, provider, model string, promptTokens int) {
	l.Log(&AuditEvent{
		EventType: AuditEventLLMRequest,
		Success:   true,
		Message:   fmt.Sprintf("LLM request to %s/%s", provider, model),
		Details: map[string]interface{}{
			"provider":      provider,
			"model":         model,
			"prompt_tokens": promptTokens,
		},
	})
}

// LogLLMResponse logs an LLM response event.
func (l *AuditLogger) LogLLMResponse(ctx context.Context, provider, model string, duration time.Duration, inputTokens, outputTokens int) {
	l.Log(&AuditEvent{
		EventType: AuditEventLLMResponse,
		Success:   true,
		Duration:  duration,
		Message:   fmt.Sprintf("LLM response from %s/%s", provider, model),
		Details: map[string]interface{}{
			"provider":      provider,
			"model":         model,
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
			"total_tokens":  inputTokens + outputTokens,
		},
	})
}

// LogLLMError logs an LLM error event.
func (l *AuditLogger) LogLLMError(ctx context.Context, provider, model string, err error) {
	l.Log(&AuditEvent{
		EventType:   AuditEventLLMError,
		Success:     false,
		Message:     fmt.Sprintf("LLM error from %s/%s", provider, model),
		ErrorDetail: err.Error(),
		Details: map[string]interface{}{
			"provider": provider,
			"model":    model,
		},
	})
}

// LogToolCall logs a tool execution event (spec §4.6: C6).
func (l *AuditLogger) LogToolCall(ctx context.Context, conversationID, repositoryID, toolName string, isError bool, duration time.Duration) {
	l.Log(&AuditEvent{
		EventType:      AuditEventToolCall,
		ConversationID: conversationID,
		RepositoryID:   repositoryID,
		Success:        !isError,
		Duration:       duration,
		Message:        fmt.Sprintf("tool %s executed", toolName),
		Details: map[string]interface{}{
			"tool": toolName,
		},
	})
}

// LogIngestionStart logs the start of a repository ingestion run
// (spec §4.3: C3).
func (l *AuditLogger) LogIngestionStart(ctx context.Context, repositoryID string, fileCount int) {
	l.Log(&AuditEvent{
		EventType:    AuditEventIngestionStart,
		RepositoryID: repositoryID,
		Success:      true,
		Message:      fmt.Sprintf("ingestion started: %d files", fileCount),
		Details: map[string]interface{}{
			"file_count": fileCount,
		},
	})
}

// LogIngestionComplete logs the completion of a repository ingestion run.
func (l *AuditLogger) LogIngestionComplete(ctx context.Context, repositoryID string, chunkCount int, duration time.Duration) {
	l.Log(&AuditEvent{
		EventType:    AuditEventIngestionComplete,
		RepositoryID: repositoryID,
		Success:      true,
		Duration:     duration,
		Message:      fmt.Sprintf("ingestion completed: %d chunks", chunkCount),
		Details: map[string]interface{}{
			"chunk_count": chunkCount,
		},
	})
}

// LogIngestionError logs a repository ingestion failure.
func (l *AuditLogger) LogIngestionError(ctx context.Context, repositoryID string, err error) {
	l.Log(&AuditEvent{
		EventType:    AuditEventIngestionError,
		RepositoryID: repositoryID,
		Success:      false,
		Message:      "ingestion failed",
		ErrorDetail:  err.Error(),
	})
}

// LogRepositoryCreate logs a repository registration event (spec §6.1:
// POST /api/ingestion/repositories).
func (l *AuditLogger) LogRepositoryCreate(ctx context.Context, repositoryID, path string) {
	l.Log(&AuditEvent{
		EventType:    AuditEventRepositoryCreate,
		RepositoryID: repositoryID,
		Success:      true,
		Message:      fmt.Sprintf("repository registered: %s", path),
		Details: map[string]interface{}{
			"path": path,
		},
	})
}

// LogRepositoryDelete logs a repository deletion event.
func (l *AuditLogger) LogRepositoryDelete(ctx context.Context, repositoryID string) {
	l.Log(&AuditEvent{
		EventType:    AuditEventRepositoryDelete,
		RepositoryID: repositoryID,
		Success:      true,
		Message:      "repository deleted",
	})
}

// Close closes the audit logger (if using a file).
func (l *AuditLogger) Close() error {
	if closer, ok := l.writer.(io.Closer); ok {
		if closer != os.Stdout && closer != os.Stderr {
			return closer.Close()
		}
	}
	return nil
}

// Global audit logger instance
var globalAuditLogger *AuditLogger
var auditOnce sync.Once

// InitGlobalAuditLogger initializes the global audit logger.
func InitGlobalAuditLogger(config *AuditConfig) error {
	var err error
	auditOnce.Do(func() {
		globalAuditLogger, err = NewAuditLogger(config)
	})
	return err
}

// Audit returns the global audit logger.
func Audit() *AuditLogger {
	if globalAuditLogger == nil {
		// Return a disabled logger if not initialized
		return &AuditLogger{enabled: false}
	}
	return globalAuditLogger
}
