package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliyamo/society-voting/internal/biometric"
	"github.com/iliyamo/society-voting/internal/config"
	"github.com/iliyamo/society-voting/internal/database"
	"github.com/iliyamo/society-voting/internal/handler"
	"github.com/iliyamo/society-voting/internal/logging"
	"github.com/iliyamo/society-voting/internal/middleware"
	"github.com/iliyamo/society-voting/internal/queue"
	"github.com/iliyamo/society-voting/internal/repository"
	"github.com/iliyamo/society-voting/internal/router"
	"github.com/iliyamo/society-voting/internal/service"
)

func main() {
	config.LoadDotEnv()
	root := &cobra.Command{
		Use:          "votingd",
		Short:        "Household e-voting service",
		SilenceUsage: true,
		RunE:         func(cmd *cobra.Command, args []string) error { return serve(cmd.Context()) },
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the vote audit consumer",
			RunE:  func(cmd *cobra.Command, args []string) error { return serve(cmd.Context()) },
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the database schema",
			RunE:  func(cmd *cobra.Command, args []string) error { return migrate(cmd.Context()) },
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func openDB(cfg config.Config) (*sqlx.DB, error) {
	return database.Open(database.Options{
		Driver: cfg.DBDriver,
		DSN:    cfg.DBURL,
		User:   cfg.DBUser,
		Pass:   cfg.DBPass,
		Host:   cfg.DBHost,
		Port:   cfg.DBPort,
		Name:   cfg.DBName,
	})
}

func migrate(ctx context.Context) error {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogJSON, nil)
	db, err := openDB(cfg)
	if err != nil {
		log.WithError(err).Error("database connection failed")
		return err
	}
	defer db.Close()
	if err := database.CreateSchema(ctx, db); err != nil {
		log.WithError(err).Error("schema creation failed")
		return err
	}
	log.WithField("driver", database.DialectOf(db)).Info("schema ready")
	return nil
}

func serve(ctx context.Context) error {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogJSON, nil)

	db, err := openDB(cfg)
	if err != nil {
		log.WithError(err).Error("database connection failed")
		return err
	}
	defer db.Close()

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer rdb.Close()
	}

	communities := repository.NewCommunityRepo(db)
	households := repository.NewHouseholdRepo(db)
	tallies := repository.NewTallyRepo(db)
	sessions := repository.NewSessionRepo(rdb, "voting:session:revoked")

	bio := config.LoadBiometricConfig()
	oracle := biometric.NewHTTPOracle(bio.OracleURL, bio.Threshold, bio.Timeout)
	publisher := queue.NewPublisher(cfg.AMQPURL, log)

	gate := service.Gate{}
	verifier := service.NewVerifier(communities, gate, log)
	engine := service.NewBallotEngine(communities, households, tallies, gate, sessions, publisher, log)

	h := router.Handlers{
		Health:  &handler.HealthHandler{DB: db},
		Society: handler.NewSocietyHandler(service.NewDirectory(communities, households)),
		Verify: &handler.VerifyHandler{
			Verifier:     verifier,
			Code:         service.SecretCode{Households: households},
			Face:         service.Biometric{Households: households, Oracle: oracle},
			Secret:       cfg.SessionSecret,
			TTL:          cfg.SessionTTL,
			Location:     cfg.DisplayLocation,
			SecureCookie: cfg.Env == "prod",
		},
		Ballot: &handler.BallotHandler{Engine: engine, Sessions: sessions, Location: cfg.DisplayLocation},
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLogger(log))
	router.RegisterRoutes(e, h)
	router.RegisterAPI(e, h, router.Options{
		SessionSecret: cfg.SessionSecret,
		Revocations:   sessions,
		Redis:         rdb,
		RateLimit:     config.LoadRateLimitConfig(),
		Cache:         config.LoadCacheConfig(),
	})

	consumer := queue.NewConsumer(cfg.AMQPURL, cfg.LogDir, log)
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("vote consumer stopped")
		}
	}()

	addr := ":" + cfg.Port
	log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "driver": database.DialectOf(db)}).Info("listening")
	errc := make(chan error, 1)
	go func() { errc <- e.Start(addr) }()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server failed")
			return err
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
