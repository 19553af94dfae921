package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/UkralStul/civic-forum-service/internal/api"
	"github.com/UkralStul/civic-forum-service/internal/config"
	"github.com/UkralStul/civic-forum-service/internal/domain"
	"github.com/UkralStul/civic-forum-service/internal/identity"
	"github.com/UkralStul/civic-forum-service/internal/logger"
	"github.com/UkralStul/civic-forum-service/internal/service"
	"github.com/UkralStul/civic-forum-service/internal/storage"
	"github.com/UkralStul/civic-forum-service/internal/storage/inmemory"
	"github.com/UkralStul/civic-forum-service/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	var store storage.Storage
	zlog.Info("starting server", zap.String("storage", cfg.Storage), zap.String("port", cfg.Port))
	if cfg.Storage == "postgres" {
		store, err = postgres.New(cfg.DatabaseURL)
		if err != nil {
			zlog.Fatal("failed to connect to postgres", zap.Error(err))
		}
	} else {
		mem := inmemory.New()
		store = mem
	}

	resolver := identity.NewStaticResolver()

	ledger := service.NewVoteLedger(store)
	assembler := service.NewThreadAssembler(store)
	svc := service.NewPostService(store, ledger, assembler, zlog)

	if cfg.Storage == "in-memory" {
		// Заполним данными для тестов
		fillWithMockData(svc, resolver, zlog)
	}

	handler := api.NewHandler(svc, api.NewThreadObserver(), zlog)
	router := api.NewRouter(handler, resolver, cfg.JWTSecret)

	zlog.Info("listening", zap.String("addr", ":"+cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		zlog.Fatal("server failed to start", zap.Error(err))
	}
}

func fillWithMockData(svc *service.PostService, resolver *identity.StaticResolver, zlog *zap.Logger) {
	ctx := context.Background()

	resolver.Register("user-1", "Мария Иванова")
	resolver.Register("user-2", "Пётр Сидоров")
	resolver.Register("user-3", "Анна Козлова")

	// 1. Корневой пост обсуждения.
	root, err := svc.CreatePost(ctx, "user-1", service.CreatePostInput{
		Title:    "Благоустройство сквера на Садовой",
		Content:  "Собираем предложения по благоустройству сквера. Что добавить в проект?",
		Category: domain.CategoryProject,
	})
	if err != nil {
		zlog.Fatal("fillWithMockData: failed to create root post", zap.Error(err))
	}

	// 2. Ответ на корневой пост.
	reply, err := svc.CreatePost(ctx, "user-2", service.CreatePostInput{
		Content:  "Предлагаю велопарковку у входа и больше лавочек.",
		ParentID: &root.ID,
	})
	if err != nil {
		zlog.Fatal("fillWithMockData: failed to create reply", zap.Error(err))
	}

	// 3. Вложенный ответ.
	if _, err := svc.CreatePost(ctx, "user-1", service.CreatePostInput{
		Content:  "Велопарковка уже в смете, лавочки добавим.",
		ParentID: &reply.ID,
	}); err != nil {
		zlog.Fatal("fillWithMockData: failed to create nested reply", zap.Error(err))
	}

	// 4. Голоса за корневой пост.
	if _, err := svc.VoteOnPost(ctx, root.ID, "user-2", 1); err != nil {
		zlog.Fatal("fillWithMockData: failed to vote", zap.Error(err))
	}
	if _, err := svc.VoteOnPost(ctx, root.ID, "user-3", 1); err != nil {
		zlog.Fatal("fillWithMockData: failed to vote", zap.Error(err))
	}

	// 5. Закрытый тред для проверки правил блокировки.
	locked, err := svc.CreatePost(ctx, "user-3", service.CreatePostInput{
		Title:    "Итоги собрания 12 августа",
		Content:  "Протокол собрания во вложении. Обсуждение завершено.",
		Category: domain.CategoryMeeting,
	})
	if err != nil {
		zlog.Fatal("fillWithMockData: failed to create locked post", zap.Error(err))
	}
	if _, err := svc.SetLocked(ctx, locked.ID, "user-3", true); err != nil {
		zlog.Fatal("fillWithMockData: failed to lock thread", zap.Error(err))
	}

	zlog.Info("mock data filled successfully",
		zap.String("root_post_id", root.ID),
		zap.String("locked_post_id", locked.ID))
}
