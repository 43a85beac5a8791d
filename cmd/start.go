package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"comparison-review/core/config"
	"comparison-review/core/database"
	"comparison-review/core/loader"
	"comparison-review/core/logger"
	"comparison-review/core/middleware/auth"
	"comparison-review/core/middleware/rayid"
	"comparison-review/core/report"
	"comparison-review/core/storage"

	"comparison-review/feature/comparison"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "comparison-review/docs/swagger"
)

// @title Comparison Review API
// @version 1.0
// @description API for reviewing and resolving comparison differences.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the comparison review server",
	Long:  `Starts the HTTP server and initializes all enabled features.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Connect to Database
		// Without it the comparison feature stays disabled.
		var db *gorm.DB
		if conn, err := database.Connect(cfg.Database); err != nil {
			logg.Error("Database connection failed", zap.Error(err))
		} else {
			db = conn
			logg = logg.With(zap.String("table", cfg.Comparison.Table))
			logg.Info("Connected to comparison database", zap.String("driver", cfg.Database.Driver))
		}

		// 4. Initialize Report Storage (Optional)
		var publisher *report.Publisher
		if cfg.Report.Publish {
			publisher = initReportStorage(cfg, logg)
		}

		// 5. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true, // We will log our own startup message
		})

		// 6. Initialize Feature Loader
		mgr := loader.NewManager()
		mgr.Register(comparison.NewFeature(db, cfg.Comparison, publisher, logg, cfg.Server.SessionLimit))

		// Middleware Registration
		// 1. RayID (Must be first to trace everything)
		app.Use(rayid.New())

		// 2. Request logging with the ray id
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// 3. Swagger Documentation (Public)
		app.Get("/swagger/*", swagger.HandlerDefault)

		// 4. Auth (Protect API)
		if cfg.Server.AuthEnabled() {
			app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey}))
		} else {
			logg.Warn("No API key configured, the API is unauthenticated")
		}

		// 7. Load Features
		loaded, err := mgr.LoadAll(app)
		if err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}
		logg.Info("Features loaded", zap.Strings("features", loaded))

		// 8. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", cfg.Server.Port))
			if err := app.Listen(":" + cfg.Server.Port); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 9. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		_ = app.Shutdown()
	},
}

// initReportStorage connects the report bucket. Failures disable publishing
// instead of stopping the server.
func initReportStorage(cfg *config.Config, logg *zap.Logger) *report.Publisher {
	store, err := storage.NewClient(cfg.Storage)
	if err != nil {
		logg.Warn("Report storage unavailable", zap.Error(err))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Storage.TimeoutSeconds)*time.Second)
	defer cancel()
	if err := storage.EnsureBucket(ctx, store, cfg.Storage.Bucket, cfg.Storage.Region); err != nil {
		logg.Warn("Report bucket unavailable", zap.Error(err))
		return nil
	}

	logg.Info("Report publishing enabled", zap.String("bucket", cfg.Storage.Bucket))
	return report.NewPublisher(store, cfg.Storage.Bucket, cfg.Report, logg)
}

func init() {
	RootCmd.AddCommand(startCmd)
}
