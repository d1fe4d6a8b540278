package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	openaisdk "github.com/openai/openai-go/v3"

	"github.com/ravivarmakumar/prism/a2a"
	"github.com/ravivarmakumar/prism/config"
	embopenai "github.com/ravivarmakumar/prism/embedder/openai"
	"github.com/ravivarmakumar/prism/eval"
	"github.com/ravivarmakumar/prism/pipeline"
	"github.com/ravivarmakumar/prism/pkg/logging"
	"github.com/ravivarmakumar/prism/pkg/telemetry"
	"github.com/ravivarmakumar/prism/provider"
	"github.com/ravivarmakumar/prism/refine"
	"github.com/ravivarmakumar/prism/retrieval"
	"github.com/ravivarmakumar/prism/runlog"
	"github.com/ravivarmakumar/prism/server"
	"github.com/ravivarmakumar/prism/session"
	sessionstore "github.com/ravivarmakumar/prism/session/store"
	"github.com/ravivarmakumar/prism/vector"
	"github.com/ravivarmakumar/prism/vector/inmemory"
	"github.com/ravivarmakumar/prism/vector/pg"
	"github.com/ravivarmakumar/prism/websearch"
)

func main() {
	_ = godotenv.Load()
	logger := logging.WithComponent("main")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "prism",
		Disable:     cfg.TelemetryDisable,
	})
	if err != nil {
		logger.Error("telemetry init failed", "error", err)
		os.Exit(1)
	}
	defer shutdownTelemetry(context.Background())

	llm, err := provider.New(ctx, provider.Config{
		Provider:    cfg.Provider,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		logger.Error("llm provider init failed", "error", err)
		os.Exit(1)
	}

	embedder := embopenai.New(cfg.APIKey, "", openaisdk.EmbeddingModel(cfg.EmbeddingModel), cfg.EmbeddingDimension)

	var store vector.VectorStore
	if cfg.PostgresHost != "" {
		pgStore, err := pg.NewPGVectorStore(&pg.PGVectorConfig{
			Host:      cfg.PostgresHost,
			Port:      cfg.PostgresPort,
			User:      cfg.PostgresUser,
			Password:  cfg.PostgresPassword,
			DBName:    cfg.PostgresDB,
			SSLMode:   cfg.PostgresSSLMode,
			Dimension: cfg.EmbeddingDimension,
			TableName: "course_passages",
		})
		if err != nil {
			logger.Error("pgvector init failed", "error", err)
			os.Exit(1)
		}
		defer pgStore.Close()
		store = pgStore
	} else {
		logger.Warn("PRISM_PG_HOST not set, using in-memory vector store")
		store = inmemory.NewInMemoryVectorStore()
	}

	chunker, err := retrieval.NewTokenChunker(cfg.EmbeddingModel)
	if err != nil {
		logger.Error("tokenizer init failed", "error", err)
		os.Exit(1)
	}
	retriever := retrieval.New(store, embedder, chunker)

	var history session.Store
	if cfg.RedisAddr != "" {
		redisStore := sessionstore.NewRedisStore(&sessionstore.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.SessionTTL,
		})
		defer redisStore.Close()
		history = redisStore
	} else {
		logger.Warn("PRISM_REDIS_ADDR not set, using in-memory session store")
		history = sessionstore.NewInMemoryStore()
	}

	var runLogger runlog.Logger = runlog.Noop{}
	if cfg.MongoURI != "" {
		mongoLogger, err := runlog.NewMongoLogger(&runlog.MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
		})
		if err != nil {
			logger.Error("mongo run logger init failed", "error", err)
			os.Exit(1)
		}
		defer mongoLogger.Close(context.Background())
		runLogger = mongoLogger
	}

	engine := eval.NewEngine(embedder,
		eval.WithDecomposer(pipeline.NewLLMDecomposer(llm)),
	)
	gate, err := eval.NewGate(engine, eval.WithThreshold(cfg.Threshold))
	if err != nil {
		logger.Error("evaluation gate init failed", "error", err)
		os.Exit(1)
	}

	refiner := refine.NewEngine(llm)
	bus := a2a.NewBus()

	pipe, err := pipeline.New(llm, gate, refiner,
		pipeline.WithRetriever(retriever),
		pipeline.WithWebSearcher(websearch.New(nil)),
		pipeline.WithHistory(history, session.DefaultHistoryLimit),
		pipeline.WithBus(bus),
		pipeline.WithRunLogger(runLogger),
		pipeline.WithMaxAttempts(cfg.MaxAttempts),
	)
	if err != nil {
		logger.Error("pipeline init failed", "error", err)
		os.Exit(1)
	}

	srv := server.New(pipe, bus)
	router := srv.SetupRouter()

	logger.Info("prism listening", "addr", cfg.ListenAddr)
	if err := router.Run(cfg.ListenAddr); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}
