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

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/dynamic-web-app/internal/config"
	"github.com/iliyamo/dynamic-web-app/internal/database"
	"github.com/iliyamo/dynamic-web-app/internal/documents"
	"github.com/iliyamo/dynamic-web-app/internal/handler"
	"github.com/iliyamo/dynamic-web-app/internal/logging"
	"github.com/iliyamo/dynamic-web-app/internal/mailer"
	"github.com/iliyamo/dynamic-web-app/internal/notify"
	"github.com/iliyamo/dynamic-web-app/internal/queue"
	"github.com/iliyamo/dynamic-web-app/internal/repository"
	"github.com/iliyamo/dynamic-web-app/internal/router"
	"github.com/iliyamo/dynamic-web-app/internal/service"
	"github.com/iliyamo/dynamic-web-app/internal/storage"
	"github.com/iliyamo/dynamic-web-app/internal/utils"
	"github.com/iliyamo/dynamic-web-app/internal/workers"
)

const siteName = "Dynamic Web App"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		return err
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	docs := repository.NewDocumentRepo(db)
	activity := repository.NewActivityRepo(db)
	notifications := repository.NewNotificationRepo(db)
	settings := repository.NewSettingsRepo(db)

	if err := service.EnsureAdmin(ctx, users, service.BootstrapAdmin{
		Email: cfg.DefaultAdminEmail, Username: cfg.DefaultAdminUsername,
		Password: cfg.DefaultAdminPassword, BcryptCost: cfg.BcryptCost,
	}, logger); err != nil {
		return err
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	var store storage.Store
	if cfg.StorageDriver == "s3" {
		store, err = storage.NewS3Store(ctx, storage.S3Config{
			Bucket: cfg.S3Bucket, Region: cfg.S3Region, Endpoint: cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey, SecretKey: cfg.S3SecretKey,
		})
	} else {
		store, err = storage.NewLocalStore(cfg.UploadPath, cfg.PublicBaseURL)
	}
	if err != nil {
		return err
	}

	var mail mailer.Sender = mailer.LogSender{Log: logger}
	if cfg.SMTPEnabled() {
		smtp, err := mailer.NewSMTPSender(mailer.SMTPConfig{
			Host: cfg.SMTPHost, Port: cfg.SMTPPort, User: cfg.SMTPUser, Pass: cfg.SMTPPass, From: cfg.SMTPFrom,
		})
		if err != nil {
			return err
		}
		mail = smtp
	} else {
		logger.Warn("SMTP not configured; emails are written to the log")
	}

	notifier := notify.New(mail, notifications, logger, siteName, cfg.ClientURL, cfg.ResetTokenTTL)
	notifier.Settings = settings
	processor := documents.NewProcessor(docs, store, logger)

	var events queue.Publisher
	if cfg.RabbitURL != "" {
		pub := queue.NewAMQPPublisher(cfg.RabbitURL, logger)
		defer pub.Close()
		events = pub
		go queue.StartConsumer(ctx, cfg.RabbitURL, queue.NotificationsQueue, 10, notifier.Handle, logger)
		go queue.StartConsumer(ctx, cfg.RabbitURL, queue.DocumentsQueue, 2, processor.Handle, logger)
	} else {
		local := queue.NewLocalDispatcher(256, logger)
		local.Handle(queue.NotificationsQueue, 2, notifier.Handle)
		local.Handle(queue.DocumentsQueue, 2, processor.Handle)
		local.Start(ctx)
		defer local.Wait()
		events = local
	}

	signer := utils.NewTokenSigner(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTokenTTL)
	recorder := service.NewActivityRecorder(activity, logger)
	auth := service.NewAuthService(users, tokens, signer, events, recorder, logger, service.AuthConfig{
		BcryptCost: cfg.BcryptCost, RefreshTokenTTL: cfg.RefreshTokenTTL,
		ResetTokenTTL: cfg.ResetTokenTTL, SingleSession: cfg.SingleSession,
	})
	profiles := service.NewProfileService(users, tokens, store, docs, events, recorder, logger, cfg.MaxProfileImageBytes)
	admin := service.NewAdminService(users, store, docs, logger)
	docService := documents.NewService(docs, store, events, logger, cfg.MaxDocumentBytes)
	if cfg.RabbitURL == "" {
		// this process is the only worker, so anything still processing was abandoned
		docService.Lease = 0
	}

	if n, err := docService.RequeuePending(ctx); err != nil {
		logger.Warn("requeue pending documents failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("requeued pending documents", zap.Int("count", n))
	}

	cleanup := workers.NewTokenCleanup(tokens, users, logger, cfg.TokenCleanupEvery)
	cleanup.Start()
	defer cleanup.Stop()

	cache := config.LoadCacheConfig()
	cache.Prefix += ":tenders"

	e := echo.New()
	router.Setup(e, cfg, logger)
	e.Use(echoprometheus.NewMiddleware("dynamic_web_app"))
	e.GET("/metrics", echoprometheus.NewHandler())

	router.RegisterRoutes(e, router.Deps{
		Config: cfg, Log: logger, Signer: signer, Redis: rdb, TenderCache: cache,
		Health:        handler.NewHealthHandler(db, rdb),
		Auth:          handler.NewAuthHandler(auth),
		Profile:       handler.NewProfileHandler(profiles, cfg.MaxProfileImageBytes),
		Settings:      handler.NewSettingsHandler(service.NewSettingsService(settings, users, events, recorder, logger)),
		Admin:         handler.NewAdminHandler(admin),
		TestRoutes:    handler.NewTestRoutesHandler(admin),
		Notes:         handler.NewNoteHandler(repository.NewNoteRepo(db)),
		Notifications: handler.NewNotificationHandler(notifications),
		Activity:      handler.NewActivityHandler(activity),
		Tenders:       handler.NewTenderHandler(repository.NewTenderRepo(db), rdb, cache.Prefix, logger),
		Files:         handler.NewFileHandler(docService),
	})

	errc := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		stop()
		return err
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
