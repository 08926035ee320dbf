package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/celt313/gamequest/agent"
	"github.com/celt313/gamequest/catalog"
	"github.com/celt313/gamequest/config"
	"github.com/celt313/gamequest/embedding"
	"github.com/celt313/gamequest/llm"
	"github.com/celt313/gamequest/logger"
	"github.com/celt313/gamequest/rerank"
	"github.com/celt313/gamequest/resilience"
	"github.com/celt313/gamequest/retriever"
	"github.com/celt313/gamequest/schema"
	"github.com/celt313/gamequest/search"
	"github.com/celt313/gamequest/server"
	"github.com/celt313/gamequest/vectorstore"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting gamequest API server",
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("catalog_driver", cfg.Catalog.Driver),
	)

	// Catalog store
	var cat catalog.Store
	switch cfg.Catalog.Driver {
	case "postgres":
		pg, err := catalog.NewPostgresStore(cfg.Catalog.DSN)
		if err != nil {
			log.Fatal("Failed to connect to catalog", zap.Error(err))
		}
		defer pg.Close()
		cat = pg
	case "memory":
		cat = catalog.NewMemoryStore()
	default:
		log.Fatal("Unknown catalog driver", zap.String("driver", cfg.Catalog.Driver))
	}

	// Embedding index
	store, err := vectorstore.NewChromemStore(cfg.VectorDB.Path)
	if err != nil {
		log.Fatal("Failed to open vector store", zap.Error(err))
	}

	// Embedding model behind the process-wide cache
	embedClient := newOpenAIClient(cfg.Embedding.APIKey, cfg.Embedding.BaseURL)
	embedModel := embedding.NewCache(
		embedding.NewOpenAIEmbeddingWithClient(embedClient, cfg.Embedding.TextModel,
			embedding.WithImageModel(cfg.Embedding.ImageModel),
			embedding.WithLogger(log),
		),
		log,
	)

	// Reasoning and rerank model
	llmClient := newOpenAIClient(cfg.LLM.APIKey, cfg.LLM.BaseURL)
	model := llm.NewOpenAILLMWithClient(llmClient, cfg.LLM.Model)

	executor := resilience.NewExecutor(resilience.DefaultConfig(), log)

	// Retrievers
	semantic := retriever.NewSemanticRetriever(embedModel, store,
		retriever.WithSemanticOverFetch(cfg.Search.OverFetchFactor))
	cover, err := retriever.NewVisualRetriever(embedModel, store, schema.ScopeCover,
		retriever.WithVisualOverFetch(cfg.Search.OverFetchFactor))
	if err != nil {
		log.Fatal("Failed to build cover retriever", zap.Error(err))
	}
	screenshot, err := retriever.NewVisualRetriever(embedModel, store, schema.ScopeScreenshot,
		retriever.WithVisualOverFetch(cfg.Search.OverFetchFactor))
	if err != nil {
		log.Fatal("Failed to build screenshot retriever", zap.Error(err))
	}

	fusionOpts := make([]retriever.FusionOption, 0, len(cfg.Search.SourceWeights))
	for source, weight := range cfg.Search.SourceWeights {
		fusionOpts = append(fusionOpts, retriever.WithSourceWeight(schema.Source(source), weight))
	}
	fusion := retriever.NewFusionEngine(fusionOpts...)

	planner := search.NewPlanner(cat, fusion,
		search.WithSemanticRetriever(semantic),
		search.WithVisualRetriever(schema.ScopeCover, cover),
		search.WithVisualRetriever(schema.ScopeScreenshot, screenshot),
		search.WithReranker(rerank.NewReranker(rerank.NewLLMScorer(model),
			rerank.WithWindow(cfg.Search.RerankWindow))),
		search.WithFilterExtractor(agent.NewFilterExtractor(model,
			agent.WithYearFloor(cfg.Search.YearFloor))),
		search.WithExplainer(agent.NewExplainer(model)),
		search.WithExecutor(executor),
		search.WithLogger(log),
		search.WithResultLimits(cfg.Search.DefaultTopK, cfg.Search.MaxTopK),
		search.WithYearFloor(cfg.Search.YearFloor),
		search.WithTimeouts(
			time.Duration(cfg.Search.RetrievalTimeoutMS)*time.Millisecond,
			time.Duration(cfg.Search.RerankTimeoutMS)*time.Millisecond,
			time.Duration(cfg.Search.ReasoningTimeoutMS)*time.Millisecond,
		),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      server.NewServer(planner, log).Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	log.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", zap.Error(err))
	}

	log.Info("Server stopped gracefully")
}

func newOpenAIClient(apiKey, baseURL string) *openai.Client {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}
