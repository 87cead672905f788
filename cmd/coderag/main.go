// coderag is the entrypoint for the code-repository RAG/agent service: a
// serve command exposing the HTTP surface (spec §6.1), an ingest command
// for one-shot repository indexing, an mcpserve command exposing the
// tool catalogue over MCP (spec §4.6: C6), and a providers command for
// listing configured LLM backends. Grounded on the teacher's
// cmd/anvil/main.go: a cobra root command, subcommands with their own
// flag sets, and a factory-registration block that turns config into a
// concrete llm.Provider.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sourcelens/coderag/internal/agent"
	"github.com/sourcelens/coderag/internal/agent/tools"
	"github.com/sourcelens/coderag/internal/chunker"
	"github.com/sourcelens/coderag/internal/config"
	"github.com/sourcelens/coderag/internal/embedding"
	"github.com/sourcelens/coderag/internal/httpapi"
	"github.com/sourcelens/coderag/internal/ingestion"
	"github.com/sourcelens/coderag/internal/llm"
	"github.com/sourcelens/coderag/internal/llmutil"
	"github.com/sourcelens/coderag/internal/mcpserver"
	"github.com/sourcelens/coderag/internal/observability"
	"github.com/sourcelens/coderag/internal/retrieval"
	"github.com/sourcelens/coderag/internal/retrieval/keywordindex"
	internalserver "github.com/sourcelens/coderag/internal/server"
	"github.com/sourcelens/coderag/internal/store"
	"github.com/sourcelens/coderag/internal/store/boltstore"
	"github.com/sourcelens/coderag/internal/store/qdrantstore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "coderag",
		Short: "Retrieval-augmented code assistant over an indexed repository",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/coderag.yaml", "Config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	var (
		ingestID   string
		ingestName string
		ingestPath string
		ingestDesc string
	)
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index a repository and make it searchable",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(configPath, ingestID, ingestName, ingestPath, ingestDesc)
		},
	}
	ingestCmd.Flags().StringVar(&ingestID, "id", "", "Repository ID (generated if empty)")
	ingestCmd.Flags().StringVar(&ingestName, "name", "", "Repository display name")
	ingestCmd.Flags().StringVar(&ingestPath, "path", "", "Path to the repository root")
	ingestCmd.Flags().StringVar(&ingestDesc, "description", "", "Repository description")
	ingestCmd.MarkFlagRequired("path")

	mcpCmd := &cobra.Command{
		Use:   "mcpserve",
		Short: "Expose the tool catalogue to MCP clients over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCPServe(configPath)
		},
	}

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available LLM providers:")
			fmt.Println()
			for name, url := range llm.KnownProviders {
				fmt.Printf("  %-14s %s\n", name, url)
			}
			fmt.Println("  custom         (set llm.base_url to any OpenAI-compatible endpoint)")
			fmt.Println()
			fmt.Println("Configure in coderag.yaml or via environment:")
			fmt.Println("  CODERAG_LLM_PROVIDER=anthropic")
			fmt.Println("  CODERAG_LLM_API_KEY=sk-...")
			fmt.Println("  CODERAG_LLM_MODEL=claude-3-5-sonnet-20241022")
		},
	}

	rootCmd.AddCommand(serveCmd, ingestCmd, mcpCmd, providersCmd)
	return rootCmd
}

// deps bundles every long-lived component wired from configuration,
// shared by serve, ingest, and mcpserve so each subcommand builds
// exactly what it needs and closes exactly what it opened.
type deps struct {
	cfg       *config.Config
	provider  llm.Provider
	db        *boltstore.DB
	chunks    store.ChunkStore
	registry  *tools.Registry
	retriever *retrieval.Retriever
	keywords  *keywordindex.Index
	pipeline  *ingestion.Pipeline
	orch      *agent.Orchestrator
}

// build wires every component from cfg. Callers are responsible for
// calling d.db.Close() once done.
func build(cfg *config.Config, logger *slog.Logger) (*deps, error) {
	factory := llm.NewFactory()
	llmutil.RegisterDefaultProviders(factory)
	provider, err := factory.Create(llm.ProviderConfig{
		Provider:   cfg.LLM.Provider,
		APIKey:     cfg.LLM.APIKey,
		Model:      cfg.LLM.Model,
		BaseURL:    cfg.LLM.BaseURL,
		EmbedModel: cfg.LLM.EmbedModel,
	})
	if err != nil {
		return nil, fmt.Errorf("build llm provider: %w", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("build: llm.provider must be set (got none)")
	}

	db, err := boltstore.Open(cfg.StoreConnection)
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}

	chunkStore, err := qdrantstore.New(cfg.Vector.Host, cfg.Vector.Port, cfg.Vector.Collection)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open qdrant store: %w", err)
	}

	kw := keywordindex.New(cfg.Keyword.IndexDir)
	embedder := embedding.New(provider)
	retriever := retrieval.New(chunkStore, embedder, kw)

	registry := tools.NewRegistry()
	registry.Register(tools.NewCodeSearchTool(retriever))
	registry.Register(tools.NewExplainCodeTool(provider))
	registry.Register(tools.NewFindReferencesTool(chunkStore))
	registry.Register(tools.NewReadFileTool(chunkStore))

	orch := agent.New(provider, registry, retriever, db.Conversations())

	c := chunker.New(chunker.Config{MaxChunkSize: cfg.Chunking.MaxChunkSize, OverlapSize: cfg.Chunking.OverlapSize}, logger)
	pipeline := ingestion.New(c, embedder, kw, chunkStore, db.Repositories(), logger)

	return &deps{
		cfg: cfg, provider: provider, db: db, chunks: chunkStore,
		registry: registry, retriever: retriever, keywords: kw,
		pipeline: pipeline, orch: orch,
	}, nil
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func runServe(configPath string) error {
	logger := slog.Default()
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName: "coderag", OTLPEndpoint: cfg.Tracing.OTLPEndpoint, SampleRate: cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	if err := observability.InitGlobalAuditLogger(&observability.AuditConfig{Enabled: true, OutputPath: "stdout"}); err != nil {
		return fmt.Errorf("init audit logger: %w", err)
	}

	d, err := build(cfg, logger)
	if err != nil {
		return err
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	go d.db.Conversations().Sweep(sweepCtx, 10*time.Minute)

	httpCfg := &httpapi.Config{ListenAddr: cfg.HTTP.ListenAddr, FrontendOrigin: cfg.FrontendOrigin}
	if httpCfg.ListenAddr == "" {
		httpCfg.ListenAddr = ":8080"
	}
	api := httpapi.NewServer(httpCfg, d.orch, d.db.Repositories(), d.db.Conversations(), d.pipeline)

	metricsServer := &http.Server{Addr: ":9090", Handler: observability.Metrics().Handler()}

	health := internalserver.NewHealthServer(&internalserver.HealthConfig{Version: "0.1.0"})
	health.RegisterCheck("bolt", internalserver.DatabaseHealthChecker(func(ctx context.Context) error {
		_, err := d.db.Repositories().ListAll(ctx)
		return err
	}))
	health.RegisterCheck("vector_store", internalserver.DatabaseHealthChecker(func(ctx context.Context) error {
		_, err := d.chunks.QueryByRepository(ctx, "__healthcheck__")
		return err
	}))
	health.RegisterCheck("llm", internalserver.LLMHealthChecker(d.provider.Name(), nil))

	shutdown := internalserver.NewShutdownHandler(nil)
	shutdown.RegisterHook("stop-sweep", 5, func(ctx context.Context) error { stopSweep(); return nil })
	for _, hook := range []internalserver.ShutdownHook{
		internalserver.HTTPServerShutdownHook("http-api", api.Stop),
		internalserver.TracingShutdownHook(tp.Shutdown),
		internalserver.MetricsShutdownHook(func(ctx context.Context) error { return metricsServer.Shutdown(ctx) }),
		internalserver.DatabaseShutdownHook(d.db.Close),
	} {
		shutdown.RegisterHook(hook.Name, hook.Priority, hook.Fn)
	}
	shutdown.RegisterHook("health-server", 96, func(ctx context.Context) error { health.Shutdown(); return nil })
	shutdown.Start()

	go func() {
		logger.Info("starting metrics server", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "err", err)
		}
	}()
	go func() {
		logger.Info("starting health server", "addr", ":8081")
		if err := health.ListenAndServe(":8081"); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", "err", err)
		}
	}()

	health.SetReady(true)

	errCh := make(chan error, 1)
	go func() { errCh <- api.Start() }()

	select {
	case err := <-errCh:
		shutdown.Shutdown()
		shutdown.Wait()
		return err
	case <-shutdown.Done():
		logger.Info("shutdown complete")
	}
	return nil
}

func runIngest(configPath, id, name, path, description string) error {
	logger := slog.Default()
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	d, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer d.db.Close()

	repo, err := d.pipeline.Run(context.Background(), ingestion.Request{
		ID: id, Name: name, Path: path, Description: description,
	})
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	fmt.Printf("Indexed repository %s (%s)\n", repo.ID, repo.Name)
	fmt.Printf("  chunks:    %d\n", repo.ChunkCount)
	fmt.Printf("  languages: %v\n", repo.Languages)
	return nil
}

func runMCPServe(configPath string) error {
	logger := slog.Default()
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	d, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer d.db.Close()

	s, err := mcpserver.New(d.registry, d.db.Repositories())
	if err != nil {
		return fmt.Errorf("build mcp server: %w", err)
	}
	return mcpserver.ServeStdio(s)
}
