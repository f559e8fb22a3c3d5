// Точка входа Document Portal — портал хранения PDF-документов.
// Загружает конфигурацию, мигрирует схему и подключается к PostgreSQL,
// открывает журнал аудита и файловое хранилище, создаёт сервисный слой
// и API handlers, запускает HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/bigkaa/godocportal/internal/api/handlers"
	"github.com/bigkaa/godocportal/internal/api/middleware"
	"github.com/bigkaa/godocportal/internal/audit"
	"github.com/bigkaa/godocportal/internal/auth"
	"github.com/bigkaa/godocportal/internal/config"
	"github.com/bigkaa/godocportal/internal/database"
	"github.com/bigkaa/godocportal/internal/ratelimit"
	"github.com/bigkaa/godocportal/internal/repository"
	"github.com/bigkaa/godocportal/internal/server"
	"github.com/bigkaa/godocportal/internal/service"
	"github.com/bigkaa/godocportal/internal/storage/filestore"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Document Portal запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Миграции схемы и пул подключений к PostgreSQL
	ctx := context.Background()
	pool, err := database.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации БД", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4. Repositories
	userRepo := repository.NewUserRepository(pool)
	docRepo := repository.NewDocumentRepository(pool)

	// 5. Тестовые пользователи (только для окружений разработки)
	if cfg.SeedUsers {
		if err := database.SeedUsers(ctx, userRepo, logger); err != nil {
			logger.Error("Ошибка создания тестовых пользователей", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// 6. Журнал аудита
	auditLog, err := audit.Open(cfg.AuditLogPath, logger)
	if err != nil {
		logger.Error("Ошибка открытия журнала аудита", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer auditLog.Close()
	logger.Info("Журнал аудита открыт", slog.String("path", cfg.AuditLogPath))

	// 7. Файловое хранилище
	store, err := filestore.New(cfg.DataDir)
	if err != nil {
		logger.Error("Ошибка инициализации файлового хранилища",
			slog.String("data_dir", cfg.DataDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	logger.Info("Файловое хранилище готово", slog.String("data_dir", cfg.DataDir))

	// 8. Трекер неудачных попыток
	tracker := ratelimit.NewTracker(
		cfg.FailThreshold,
		cfg.BlockDuration,
		cfg.FailWindow,
		cfg.MaxTrackedClients,
		auditLog,
		logger,
	)

	// 9. Сервис токенов (HS256)
	tokenSvc := auth.NewService([]byte(cfg.JWTSecret), cfg.TokenTTL)

	// 10. Services
	authSvc := service.NewAuthService(userRepo, tokenSvc, tracker, auditLog, logger)
	docSvc := service.NewDocumentService(docRepo, store, tracker, auditLog, logger)

	// 11. API handlers и middleware
	guard := middleware.NewGuard(tokenSvc, tracker, auditLog, logger)
	h := server.Handlers{
		Auth:      handlers.NewAuthHandler(authSvc, tracker),
		Documents: handlers.NewDocumentsHandler(docSvc, cfg.MaxUploadSize),
		Health:    handlers.NewHealthHandler(store.DataDir(), database.NewReadinessChecker(pool)),
		Guard:     guard,
	}

	// 12. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, h)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Document Portal остановлен")
}
