package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hireloop/config"
	"hireloop/internal/database"
	"hireloop/internal/jobs"
	"hireloop/internal/repository"
	"hireloop/internal/router"
	"hireloop/internal/service"
	"hireloop/internal/ws"
	"hireloop/pkg/cloudinary"
	"hireloop/pkg/payment"
	"hireloop/pkg/rabbitmq"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(envDir)
	if err != nil {
		return err
	}
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	var gateway payment.Gateway
	if cfg.Payment.StripeSecretKey != "" {
		gateway = payment.NewStripeGateway(cfg.Payment.StripeSecretKey, cfg.Payment.WebhookSecret)
		log.Printf("[Payment] using Stripe gateway")
	} else {
		gateway = payment.NewStubGateway(cfg.Payment.WebhookSecret, "")
		log.Printf("[Payment] STRIPE_SECRET_KEY not set, using offline stub gateway")
	}

	deps := router.Deps{Gateway: gateway, Hub: ws.NewHub()}

	if cloud, err := cloudinary.NewClientFromParams(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret); err != nil {
		log.Printf("[Cloudinary] deliverable uploads disabled: %v", err)
	} else {
		deps.Cloud = cloud
	}

	if cfg.RabbitMQ.URL != "" {
		producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			log.Printf("[RabbitMQ] connect failed, audit events will only be logged: %v", err)
		} else {
			defer producer.Close()
			deps.Publisher = producer
		}
	}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Printf("[Redis] ping failed, rate limiter will fall back to memory when needed: %v", err)
		}
		cancel()
		deps.Redis = rdb
	}

	fcmSvc := service.NewFCMService(cfg.Firebase.CredentialsPath)
	if fcmSvc != nil {
		log.Printf("[FCM] Push notifications enabled")
	} else {
		log.Printf("[FCM] Push notifications disabled: set FIREBASE_CREDENTIALS_PATH to enable")
	}
	notificationRepo := repository.NewNotificationRepository(db)
	deps.Notifier = service.NewNotificationService(notificationRepo, repository.NewUserRepository(db), fcmSvc, deps.Hub)

	reminder := jobs.NewReleaseReminder(repository.NewContractRepository(db), notificationRepo, deps.Notifier, cfg.Jobs.ReleaseReminderAfter)
	scheduler := jobs.NewScheduler(cfg.Jobs, reminder)
	if err := scheduler.Start(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Setup(cfg, db, deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Printf("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	<-scheduler.Stop().Done()
	log.Println("server stopped")
	return nil
}
