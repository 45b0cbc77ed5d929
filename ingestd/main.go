// main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/streamuz/ingest-service/config"
	"github.com/streamuz/ingest-service/database"
	"github.com/streamuz/ingest-service/events"
	"github.com/streamuz/ingest-service/handlers"
	"github.com/streamuz/ingest-service/middleware"
	"github.com/streamuz/ingest-service/queue"
	"github.com/streamuz/ingest-service/services"
	"github.com/streamuz/ingest-service/storage"
	"github.com/streamuz/ingest-service/store"
	"github.com/streamuz/ingest-service/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

func main() {
	// Konfiguratsiya yuklash
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal("Konfiguratsiya yuklanmadi: ", err)
	}

	// Cassandra ulanish
	cassandraSession, err := database.NewCassandraDB(cfg.CassandraHosts)
	if err != nil {
		logrus.Fatal("Cassandra ulanmadi: ", err)
	}
	defer cassandraSession.Close()

	// MinIO ulanish
	minioClient, err := database.NewMinIOClient(cfg.MinIO)
	if err != nil {
		logrus.Fatal("MinIO ulanmadi: ", err)
	}

	// Redis ulanish (queue va comment eventlar uchun)
	redisClient, err := database.NewRedisClient(cfg.RedisAddr)
	if err != nil {
		logrus.Fatal("Redis ulanmadi: ", err)
	}
	defer redisClient.Close()

	// Job queue backend tanlash
	var jobQueue queue.JobQueue
	switch cfg.QueueBackend {
	case "kafka":
		jobQueue = queue.NewKafkaQueue(cfg.KafkaBrokers)
	default:
		jobQueue = queue.NewRedisQueue(redisClient)
	}
	defer jobQueue.Close()

	// Services
	gateway := storage.NewMinIOGateway(minioClient)
	videoStore := store.NewCassandraStore(cassandraSession)
	prober := services.NewProbeService(gateway, cfg.MinIO.RawBucket, cfg.FFprobePath)
	transcoder := services.NewFFmpegTranscoder(gateway, cfg.MinIO.RawBucket,
		cfg.MinIO.ProcessedBucket, cfg.MinIO.ThumbnailBucket, cfg.FFmpegPath)

	coordinator := services.NewCoordinatorService(videoStore, jobQueue, prober, transcoder,
		services.CoordinatorConfig{
			Tiers:                 cfg.Tiers,
			RetryMax:              cfg.RetryMax,
			RetryBackoffBase:      cfg.RetryBackoffBase,
			TranscodeTimeout:      cfg.TranscodeTimeout,
			ProgressWriteInterval: cfg.ProgressWriteInterval,
			MaxConcurrent:         cfg.MaxConcurrentTranscodes,
		})

	// Background workers ishga tushirish
	ctx, cancel := context.WithCancel(context.Background())

	// Ingest worker pool
	pool := workers.NewIngestWorkerPool(cfg.WorkerCount, jobQueue, coordinator)
	pool.Start(ctx)

	// Comment counter worker
	commentEvents := events.NewRedisCommentEvents(redisClient)
	commentCounter := events.NewCommentCounter(commentEvents, videoStore)
	go commentCounter.Run(ctx, 10*time.Second)

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 4 * 1024 * 1024, // signal endpointlar, katta body kerak emas
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	// Routes - faqat ingest signal plumbing, content API emas
	api := app.Group("/api")

	ingest := api.Group("/ingest")
	ingest.Post("/complete", handlers.IngestComplete(videoStore, jobQueue))
	ingest.Get("/:id", handlers.GetIngestStatus(videoStore))
	ingest.Post("/:id/resubmit", middleware.RateLimit(), handlers.Resubmit(coordinator))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	go func() {
		logrus.Printf("Ingest service ishga tushdi: http://localhost:%s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logrus.Fatal(err)
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logrus.Println("Ingest service to'xtatilmoqda...")
	cancel()
	pool.Stop()
	_ = app.Shutdown()
	logrus.Println("Ingest service to'xtadi")
}
