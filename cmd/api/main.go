package main

import (
	"context"
	"log"
	"time"

	"github.com/anjiri1684/tuition_billing/cache"
	config "github.com/anjiri1684/tuition_billing/configs"
	"github.com/anjiri1684/tuition_billing/database"
	"github.com/anjiri1684/tuition_billing/events"
	"github.com/anjiri1684/tuition_billing/handlers"
	"github.com/anjiri1684/tuition_billing/jobs"
	"github.com/anjiri1684/tuition_billing/reconciliation"
	"github.com/anjiri1684/tuition_billing/routes"
	"github.com/anjiri1684/tuition_billing/services"
	"github.com/anjiri1684/tuition_billing/storage"
	"github.com/anjiri1684/tuition_billing/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("🔥 JWT_SECRET is not set")
	}

	database.ConnectDB(cfg)
	database.Migrate()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	publisher := events.Multi{events.LogPublisher{}, hub}
	if cfg.KafkaBroker != "" {
		kafka, err := events.NewKafkaPublisher(cfg.KafkaBroker, cfg.KafkaTopic)
		if err != nil {
			log.Printf("⚠️ Kafka unavailable, events will only be logged: %v", err)
		} else {
			defer kafka.Close()
			publisher = append(publisher, kafka)
		}
	}

	var locker cache.Locker = cache.NewMemoryLocker()
	if cfg.RedisAddr != "" {
		client, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Printf("⚠️ Redis unavailable, import locks are local to this process: %v", err)
		} else {
			defer client.Close()
			locker = cache.NewRedisLocker(client)
		}
	}

	var proofs storage.ProofStore
	if cfg.CloudinaryURL != "" {
		store, err := storage.NewCloudinaryProofStore(cfg.CloudinaryURL, cfg.ProofFolder)
		if err != nil {
			log.Printf("⚠️ Cloudinary unavailable, proofs are hashed but not stored: %v", err)
		} else {
			proofs = store
		}
	}

	recon := reconciliation.NewService(database.DB, publisher, hub, locker)
	deps := services.Deps{DB: database.DB, Publisher: publisher, Sink: hub}
	h := &handlers.Handler{
		Recon:       recon,
		Receipts:    &services.ReceiptService{Deps: deps, Store: proofs},
		Historical:  &services.HistoricalImportService{Deps: deps, Locker: locker, Batches: recon},
		Ledger:      &services.LedgerService{Deps: deps, Recon: recon},
		Collections: &services.CollectionsService{Deps: deps},
		Hub:         hub,
		JWTSecret:   cfg.JWTSecret,
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.ReconcileCron, jobs.ReconcileUploadedRecords(recon)); err != nil {
		log.Fatalf("🔥 Invalid RECONCILE_CRON %q: %v", cfg.ReconcileCron, err)
	}
	go c.Start()
	defer c.Stop()
	log.Println("✅ Cron job for reconciliation scheduled successfully.")

	app := fiber.New(fiber.Config{
		Prefork:           false,
		AppName:           "Tuition Billing",
		CaseSensitive:     true,
		StrictRouting:     true,
		EnablePrintRoutes: true,
		BodyLimit:         12 * 1024 * 1024,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   cfg.TimeZone,
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.Setup(app, h)

	log.Printf("✅ Server is running on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
