package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/quill/internal/ai"
	"github.com/xxxsen/quill/internal/auth"
	"github.com/xxxsen/quill/internal/chat"
	"github.com/xxxsen/quill/internal/chunk"
	"github.com/xxxsen/quill/internal/config"
	"github.com/xxxsen/quill/internal/db"
	"github.com/xxxsen/quill/internal/digest"
	"github.com/xxxsen/quill/internal/email"
	"github.com/xxxsen/quill/internal/extract"
	"github.com/xxxsen/quill/internal/fetch"
	"github.com/xxxsen/quill/internal/handler"
	"github.com/xxxsen/quill/internal/ingest"
	"github.com/xxxsen/quill/internal/job"
	"github.com/xxxsen/quill/internal/memory"
	"github.com/xxxsen/quill/internal/middleware"
	"github.com/xxxsen/quill/internal/preprocess"
	"github.com/xxxsen/quill/internal/repo"
	"github.com/xxxsen/quill/internal/retrieve"
	"github.com/xxxsen/quill/internal/schedule"
	"github.com/xxxsen/quill/internal/summarycache"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "quill",
		Short: "quill backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run quill server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger.Init("", cfg.LogLevel, 0, 0, 0, true)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.Int("port", cfg.Port))
			return runServer(cfg)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger.Init("", cfg.LogLevel, 0, 0, 0, true)
			sqlDB, err := db.Open(cfg.DB)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer sqlDB.Close()
			if err := db.Migrate(context.Background(), sqlDB); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			logutil.GetLogger(context.Background()).Info("migrations applied")
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	sqlDB, err := db.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if err := db.Migrate(context.Background(), sqlDB); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	sessionRepo := repo.NewChatSessionRepo(sqlDB)
	messageRepo := repo.NewChatMessageRepo(sqlDB)
	memoryRepo := repo.NewChatMemoryRepo(sqlDB)
	ragCtxRepo := repo.NewChatRagContextRepo(sqlDB)
	insightRepo := repo.NewInsightRepo(sqlDB)
	insightContentRepo := repo.NewInsightContentRepo(sqlDB)
	chunkRepo := repo.NewChunkRepo(sqlDB)
	tagRepo := repo.NewTagRepo(sqlDB)
	_ = tagRepo
	insightTagRepo := repo.NewInsightTagRepo(sqlDB)
	profileRepo := repo.NewProfileRepo(sqlDB)
	emailPrefsRepo := repo.NewEmailPreferencesRepo(sqlDB)
	emailDigestRepo := repo.NewEmailDigestRepo(sqlDB)
	unsubscribeTokenRepo := repo.NewUnsubscribeTokenRepo(sqlDB)
	emailEventRepo := repo.NewEmailEventRepo(sqlDB)
	emailSuppressionRepo := repo.NewEmailSuppressionRepo(sqlDB)

	chatProvider, err := ai.NewProvider(cfg.AI.Provider, ai.Config{APIKey: cfg.AI.APIKey, BaseURL: cfg.AI.BaseURL})
	if err != nil {
		return fmt.Errorf("init chat provider: %w", err)
	}
	embedProvider, err := ai.NewEmbedProvider(cfg.AI.Provider, ai.Config{APIKey: cfg.AI.APIKey, BaseURL: cfg.AI.BaseURL})
	if err != nil {
		return fmt.Errorf("init embed provider: %w", err)
	}

	supervisor := job.NewSupervisor(cfg.MaxConcurrentJobs)

	fetcher := fetch.New(10 << 20)
	extractor := extract.New()
	preprocessor := preprocess.New()
	chunker := chunk.New()
	summaries := summarycache.New(500, cfg.SummaryCache.TTL)

	orchestrator := ingest.New(
		fetcher, extractor, preprocessor, chunker, summaries,
		chatProvider, embedProvider, cfg.AI.ChatModel, cfg.AI.EmbeddingModel,
		supervisor, insightRepo, insightContentRepo, chunkRepo,
	)

	retriever := retrieve.New(embedProvider, cfg.AI.EmbeddingModel, chunkRepo, cfg.RAG.ClientSideVectorK)
	extractor2 := memory.NewExtractor(chatProvider, cfg.AI.ChatModel, messageRepo, memoryRepo)
	consolidator := memory.NewConsolidator(memoryRepo, profileRepo)

	chatEngine := chat.New(
		chatProvider, cfg.AI.ChatModel, retriever, cfg.RAG.MaxContextTokens,
		sessionRepo, messageRepo, memoryRepo, ragCtxRepo, supervisor, extractor2,
	)

	digestBuilder := digest.NewBuilder(insightRepo, insightContentRepo, insightTagRepo, profileRepo, chatProvider, cfg.AI.ChatModel)
	brevoClient := email.NewBrevoClient(cfg.Email)
	digestDispatcher := digest.NewDispatcher(emailPrefsRepo, emailDigestRepo, emailSuppressionRepo, profileRepo, insightRepo, digestBuilder, brevoClient)
	webhookProcessor := email.NewWebhookProcessor(emailEventRepo, emailSuppressionRepo)

	var verifiers []auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		verifiers = append(verifiers, auth.StandardJWT{Secret: []byte(cfg.Auth.JWTSecret)})
	}
	if cfg.Auth.ServiceToken != "" {
		verifiers = append(verifiers, auth.OpaqueServiceToken{Prefix: cfg.Auth.ServiceTokenPrefix, Secret: cfg.Auth.ServiceToken})
	}
	authResolver := auth.NewResolver(verifiers...)
	limiter := middleware.NewBucketLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)

	insightHandler := handler.NewInsightHandler(orchestrator, insightRepo, insightTagRepo)
	metadataHandler := handler.NewMetadataHandler(fetcher, extractor, preprocessor, summaries, chatProvider, cfg.AI.ChatModel, supervisor)
	chatHandler := handler.NewChatHandler(chatEngine, sessionRepo, messageRepo, ragCtxRepo)
	memoryHandler := handler.NewMemoryHandler(consolidator, extractor2, profileRepo, supervisor)
	emailHandler := handler.NewEmailHandler(
		digestDispatcher, digestBuilder, brevoClient, webhookProcessor,
		emailPrefsRepo, profileRepo, emailSuppressionRepo, unsubscribeTokenRepo,
		cfg.Email.CronSecret,
	)

	deps := handler.RouterDeps{
		AuthResolver: authResolver,
		Profiles:     profileRepo,
		Limiter:      limiter,
		Insight:      insightHandler,
		Metadata:     metadataHandler,
		Chat:         chatHandler,
		Memory:       memoryHandler,
		Email:        emailHandler,
	}

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewEmbeddingRetryJob(chunkRepo, embedProvider, cfg.AI.EmbeddingModel, 15*time.Minute, 50), "*/15 * * * *"); err != nil {
		return fmt.Errorf("schedule embedding retry: %w", err)
	}
	if err := scheduler.AddJob(job.NewRateLimiterSweepJob(limiter, cfg.RateLimit.SweepTTL), "*/10 * * * *"); err != nil {
		return fmt.Errorf("schedule ratelimit sweep: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	scheduler.Stop()
	supervisor.Shutdown(30 * time.Second)
	return nil
}
