package httpapi

import (
	"context"

	"github.com/sourcelens/coderag/internal/agent"
	"github.com/sourcelens/coderag/internal/ingestion"
	"github.com/sourcelens/coderag/internal/models"
)

// agentHandler is the subset of agent.Orchestrator this package depends
// on, kept as an interface so tests can substitute a fake orchestrator.
type agentHandler interface {
	Handle(ctx context.Context, req agent.Request) (*agent.Response, error)
	HandleStream(ctx context.Context, req agent.Request, emit func(agent.Event)) error
}

// ingestionPipeline is the subset of ingestion.Pipeline this package
// depends on.
type ingestionPipeline interface {
	Run(ctx context.Context, req ingestion.Request) (*models.Repository, error)
	Delete(ctx context.Context, id string) error
	StatsFor(ctx context.Context, id string) (*ingestion.Stats, error)
}
