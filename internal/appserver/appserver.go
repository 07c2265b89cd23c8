package appserver

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rosehq/screening-backend/config"
	repository "github.com/rosehq/screening-backend/internal/database/postgres"
	"github.com/rosehq/screening-backend/internal/service"
	"github.com/rosehq/screening-backend/internal/transport"
	"github.com/rosehq/screening-backend/internal/worker"

	"github.com/rosehq/screening-backend/pkg/otp"
	"github.com/rosehq/screening-backend/pkg/postgres"
	"github.com/rosehq/screening-backend/pkg/queue"
	"github.com/rosehq/screening-backend/pkg/redis"
	"github.com/rosehq/screening-backend/pkg/scheduler"
	"github.com/rosehq/screening-backend/pkg/sms"
	"github.com/rosehq/screening-backend/pkg/storage"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(cfg *config.Config) {

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)

	// Initialize database
	db, err := postgres.NewPostgresDB(&cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := postgres.RunMigrations(db); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize repositories
	eventRepo := repository.NewEventRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	resultRepo := repository.NewResultRepository(db)

	// Redis backs both the OTP store and the notification queue
	redisClient := redis.NewRedisClient(&cfg.Redis)
	defer redisClient.Close()

	otpStore := otp.NewRedisStore(redisClient, cfg.OTP.TTL)

	smsClient := sms.NewClient(cfg.SMS.GatewayURL, cfg.SMS.APIKey, cfg.SMS.Sender, cfg.SMS.Mock)
	if cfg.SMS.Mock {
		logrus.Warn("SMS gateway in mock mode, messages are logged only")
	}

	artifactStore := storage.NewFileStore(cfg.Storage.BasePath, cfg.Storage.BaseURL, cfg.Storage.Secret)

	var taskPublisher service.TaskPublisher
	redisQueue, err := queue.NewRedisQueue(redisClient, queue.DefaultRedisQueueConfig(), nil)
	if err != nil {
		logrus.Errorf("Failed to initialize Redis queue: %v. Continuing without queue...", err)
	} else {
		logrus.Info("Redis queue initialized")
		taskPublisher = service.NewQueueAdapter(redisQueue)
	}

	// Initialize services
	bookingService := service.NewBookingService(bookingRepo, eventRepo, participantRepo, taskPublisher, cfg.Booking.ReferencePrefix)
	eventService := service.NewEventService(eventRepo, bookingRepo, resultRepo)
	resultService := service.NewResultService(resultRepo, bookingRepo, eventRepo, participantRepo, otpStore, artifactStore, taskPublisher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if redisQueue != nil {
		notifyWorker := worker.NewNotifyWorker(redisQueue, smsClient)
		go notifyWorker.Start(ctx)
		logrus.Info("Notification worker started")

		promoter := scheduler.NewScheduler("delayed-task-promoter", cfg.Worker.PromoteInterval, redisQueue.PromoteDue)
		go promoter.Start(ctx)
		logrus.Info("Delayed task promoter started")
	}

	// Initialize handlers
	eventHandler := transport.NewEventHandler(eventService)
	bookingHandler := transport.NewBookingHandler(bookingService)
	resultHandler := transport.NewResultHandler(resultService)
	artifactHandler := transport.NewArtifactHandler(artifactStore)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, transport.InitRoutes(eventHandler, bookingHandler, resultHandler, artifactHandler)); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
}
