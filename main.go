package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finance-gamification/config"
	"finance-gamification/handlers"
	"finance-gamification/logger"
	"finance-gamification/middleware"
	"finance-gamification/models"
	"finance-gamification/services"
	"finance-gamification/utils"
	"finance-gamification/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}

	// expenses/income belong to the tracker's own migrations
	if err := db.AutoMigrate(
		&models.UserProgressionProfile{},
		&models.AchievementDefinition{},
		&models.AchievementProgress{},
		&models.XPHistoryEntry{},
		&models.DailyQuestSet{},
	); err != nil {
		log.Fatal("failed to migrate database", "error", err)
	}

	catalog, err := loadCatalog(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to load gamification catalog", "error", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal("invalid timezone", "error", err)
	}

	var publisher services.EventPublisher = services.NoopPublisher{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("⚠️  Redis unreachable, progression events will fail to publish", "addr", cfg.RedisAddr, "error", err)
		}
		publisher = services.NewRedisPublisher(rdb, cfg.RedisChannel)
		log.Info("📣 Publishing progression events", "addr", cfg.RedisAddr, "channel", cfg.RedisChannel)
	}

	progressionService := services.NewProgressionService(db, services.ProgressionOptions{
		Catalog:    catalog,
		Stats:      services.NewGormStatsProvider(db),
		Clock:      clockwork.NewRealClock(),
		Location:   loc,
		Publisher:  publisher,
		Logger:     log.With("component", "progression"),
		MaxRetries: cfg.MaxRetries,
	})
	if err := progressionService.SeedCatalog(ctx); err != nil {
		log.Fatal("failed to seed achievement catalog", "error", err)
	}

	retention := workers.NewQuestRetentionWorker(progressionService, cfg.QuestRetentionDays, cfg.RetentionInterval,
		clockwork.NewRealClock(), log.With("component", "quest_retention"))
	if err := retention.Start(ctx); err != nil {
		log.Fatal("failed to start quest retention worker", "error", err)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 64 * 1024,
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken, log))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Origins(),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-Language, Accept-Language",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.SetupGamificationRoutes(app, progressionService, log)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("Server error", "error", err)
		}
	}()

	log.Info("✅ Server running", "port", cfg.Port)
	log.Info("✅ GatewayAuthMiddleware enforced globally, all requests must come from Gateway")
	log.Info("✅ CORS configured", "origins", cfg.Origins())

	<-ctx.Done()
	log.Info("Shutting down server...")
	retention.Stop()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("Server shutdown", "error", err)
	}
}

// loadCatalog prefers a local file, then an R2 object, then the compiled-in defaults.
func loadCatalog(ctx context.Context, cfg *config.Config, log *logger.Logger) (*services.Catalog, error) {
	switch {
	case cfg.CatalogPath != "":
		log.Info("📚 Loading catalog from file", "path", cfg.CatalogPath)
		return services.LoadCatalogFile(cfg.CatalogPath)
	case cfg.CatalogR2Key != "" && cfg.R2.Enabled():
		store, err := utils.NewR2Store(ctx, cfg.R2)
		if err != nil {
			return nil, err
		}
		data, err := store.FetchObject(ctx, cfg.CatalogR2Key)
		if err != nil {
			return nil, err
		}
		log.Info("📚 Loaded catalog from R2", "bucket", cfg.R2.Bucket, "key", cfg.CatalogR2Key)
		return services.ParseCatalog(data)
	}
	log.Info("📚 Using built-in catalog")
	return services.DefaultCatalog(), nil
}
