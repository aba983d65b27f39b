package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"

	"github.com/mentorlab/mentor-server/internal/ai"
	httpapi "github.com/mentorlab/mentor-server/internal/api/http"
	"github.com/mentorlab/mentor-server/internal/config"
	"github.com/mentorlab/mentor-server/internal/crypto"
	"github.com/mentorlab/mentor-server/internal/entitlement"
	"github.com/mentorlab/mentor-server/internal/logger"
	"github.com/mentorlab/mentor-server/internal/memory"
	"github.com/mentorlab/mentor-server/internal/persona"
	"github.com/mentorlab/mentor-server/internal/repository/postgres"
	"github.com/mentorlab/mentor-server/internal/server"
	"github.com/mentorlab/mentor-server/internal/service"
	storage "github.com/mentorlab/mentor-server/internal/storage/minio"
	"github.com/mentorlab/mentor-server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	userRepo := postgres.NewUserRepository(db)
	mentorRepo := postgres.NewMentorRepository(db)
	turnRepo := postgres.NewTurnRepository(db)

	encryptionKey, err := cfg.Encryption.DecodeKey()
	if err != nil {
		logger.Fatal("failed to load encryption key", "error", err)
	}
	encryptor, err := crypto.New(encryptionKey)
	if err != nil {
		logger.Fatal("failed to initialize encryption", "error", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	gate := entitlement.NewGate(rdb, cfg.Quota, logger)

	vectorStore, err := newVectorStore(cfg.Memory.Path)
	if err != nil {
		logger.Fatal("failed to initialize vector store", "error", err)
	}

	aiClient, err := ai.NewClient(cfg.OpenAI, logger)
	if err != nil {
		logger.Fatal("failed to initialize ai client", "error", err)
	}

	minioClient, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Fatal("failed to create minio client", "error", err)
	}
	storageClient, err := storage.NewClient(ctx, minioClient, cfg.Storage.Bucket)
	if err != nil {
		logger.Fatal("failed to initialize storage client", "error", err)
	}

	generator := persona.NewGenerator(aiClient, logger)
	tokenManager := token.NewJWT(cfg.JWT.Secret)

	conversationService := service.NewConversation(
		userRepo, mentorRepo, turnRepo, vectorStore, aiClient, encryptor, gate,
		service.ConversationConfig{
			TopK:         cfg.Memory.TopK,
			PromptBudget: cfg.Memory.PromptBudget,
			MaxTokens:    cfg.OpenAI.MaxTokens,
			MaxRetries:   cfg.OpenAI.MaxRetries,
		},
		logger,
	)
	mentorService := service.NewMentor(userRepo, mentorRepo, generator, encryptor, gate, logger)
	exportService := service.NewExport(userRepo, mentorRepo, turnRepo, encryptor, storageClient, logger)
	sweeper := service.NewSweeper(turnRepo, vectorStore, aiClient, encryptor, cfg.Sweep.Interval, cfg.Sweep.BatchSize, logger)

	handler := httpapi.NewHandler(conversationService, mentorService, exportService, logger)
	router := httpapi.NewRouter(handler, tokenManager, logger)
	httpServer := server.NewHTTPServer(router, fmt.Sprintf(":%s", cfg.HTTP.Port))

	var listener server.Listener
	if cfg.HTTP.EnableHTTPS {
		listener = server.NewTLSListener(cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)
	} else {
		listener = server.NewPlainListener()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("starting server", "address", httpServer.Address())
		if err := httpServer.Start(listener); err != nil {
			logger.Error("failed to start server", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", httpServer.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func newVectorStore(path string) (*memory.ChromemStore, error) {
	if path == "" {
		return memory.New(), nil
	}
	return memory.NewPersistent(path)
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
