package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/carelink/backend/internal/admission"
	"github.com/carelink/backend/internal/availability"
	"github.com/carelink/backend/internal/config"
	"github.com/carelink/backend/internal/consultations"
	"github.com/carelink/backend/internal/database"
	"github.com/carelink/backend/internal/handlers"
	"github.com/carelink/backend/internal/matching"
	"github.com/carelink/backend/internal/messaging"
	"github.com/carelink/backend/internal/notify"
	"github.com/carelink/backend/internal/recording"
	"github.com/carelink/backend/internal/session"
	"github.com/carelink/backend/internal/storage"
	"github.com/carelink/backend/internal/verification"
	ws "github.com/carelink/backend/internal/websocket"
	"github.com/carelink/backend/pkg/auth"
)

type Server struct {
	Config    *config.Config
	Router    *gin.Engine
	DB        *database.Database
	Redis     *redis.Client
	Hub       *ws.Hub
	Scheduler *matching.Scheduler

	rabbit    *messaging.Publisher
	rabbitCls func() error
}

func NewServer() *Server {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Info().Msg(".env not found, using environment variables")
		}
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	dbConn := &database.Database{}
	if err := dbConn.Connect(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis connect failed")
	}

	store, err := storage.NewStore(cfg.Minio)
	if err != nil {
		log.Fatal().Err(err).Msg("object storage init failed")
	}
	bucketCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.EnsureBucket(bucketCtx); err != nil {
		log.Fatal().Err(err).Msg("bucket init failed")
	}

	rabbitConn, err := messaging.NewRabbitMQConn(context.Background(), cfg.Rabbit.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbitmq connect failed")
	}
	publisher, err := messaging.NewPublisher(rabbitConn, cfg.Rabbit.Exchange, cfg.Rabbit.RoutingKey)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbitmq channel failed")
	}

	var sender notify.Sender = notify.NopSender{}
	if cfg.SMS.AccountSID != "" {
		sender = notify.NewTwilioSender(cfg.SMS)
	}

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, 24*time.Hour)
	provider := session.NewLiveKitProvider(cfg.Session)

	availStore := availability.NewRedisStore(rdb, cfg.AvailabilityTTL)
	consultSvc := consultations.NewService(dbConn, cfg.JoinWindowBefore, cfg.JoinWindowAfter)
	matcher := matching.NewMatcher(availStore, consultSvc)
	scheduler := matching.NewScheduler(matcher, cfg.MatchingInterval, cfg.MatchingLeadDays)
	verify := verification.NewService(rdb, sender, cfg.OrgCodeTTL)
	admit := admission.NewController(rdb, dbConn, consultSvc, provider)

	hub := ws.NewHub()
	coordinator := recording.NewCoordinator(provider, hub, store, publisher,
		recording.DBUpdater{DB: dbConn, Svc: consultSvc})

	authH := handlers.NewAuthHandler(dbConn, jwtMgr, rdb, verify)
	availH := handlers.NewAvailabilityHandler(availStore, dbConn, cfg.AvailabilityTTL)
	consultH := handlers.NewConsultationHandler(consultSvc, dbConn)
	matchH := handlers.NewMatchingHandler(matcher, cfg.MatchingLeadDays)
	videoH := handlers.NewVideoHandler(admit, coordinator)
	drugH := handlers.NewDrugHandler(dbConn, store, publisher)
	wsH := handlers.NewWebSocketHandler(hub, dbConn, cfg.AllowedOrigins)

	router := gin.Default()
	APIEndpoints(router, cfg, jwtMgr, rdb, authH, availH, consultH, matchH, videoH, drugH, wsH)

	return &Server{
		Config:    cfg,
		Router:    router,
		DB:        dbConn,
		Redis:     rdb,
		Hub:       hub,
		Scheduler: scheduler,
		rabbit:    publisher,
		rabbitCls: rabbitConn.Close,
	}
}

// Run serves HTTP until SIGINT/SIGTERM, then drains background work.
func (s *Server) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go s.Hub.Run()
	s.Scheduler.Start(log.Logger.WithContext(ctx))

	srv := &http.Server{
		Addr:    ":" + s.Config.Port,
		Handler: s.Router,
	}

	go func() {
		log.Info().Str("port", s.Config.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server run error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}

	s.Scheduler.Stop()
	s.Hub.Stop()
	s.rabbit.Close()
	s.rabbitCls()
	s.Redis.Close()
}
