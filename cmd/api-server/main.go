package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-queue-scheduling/internal/api"
	"github.com/hackgods/doctor-queue-scheduling/internal/appointment"
	"github.com/hackgods/doctor-queue-scheduling/internal/clock"
	"github.com/hackgods/doctor-queue-scheduling/internal/config"
	"github.com/hackgods/doctor-queue-scheduling/internal/db"
	"github.com/hackgods/doctor-queue-scheduling/internal/doctor"
	"github.com/hackgods/doctor-queue-scheduling/internal/events"
	"github.com/hackgods/doctor-queue-scheduling/internal/logging"
	"github.com/hackgods/doctor-queue-scheduling/internal/metrics"
	"github.com/hackgods/doctor-queue-scheduling/internal/queue"
	redisclient "github.com/hackgods/doctor-queue-scheduling/internal/redis"
	"github.com/hackgods/doctor-queue-scheduling/internal/scheduling"
	"github.com/hackgods/doctor-queue-scheduling/internal/sweeper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg.LogLevel, cfg.Env)
	log.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("version", cfg.Version).
		Str("timezone", cfg.Location.String()).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Connect Postgres
	var pgPool *pgxpool.Pool
	if cfg.PostgresDSN != "" {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connection error")
		}
		defer pgPool.Close()
		log.Info().Msg("connected to Postgres")
	} else {
		log.Warn().Msg("POSTGRES_DSN not set, state will not survive a restart")
	}

	// Connect Redis
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("error closing redis")
			}
		}()
		log.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
	}

	clk := clock.NewMonotonic(clock.System{})
	ids := clock.RandomIDs{}

	doctorOpts := []doctor.Option{doctor.WithMetrics(m), doctor.WithLogger(log)}
	apptOpts := []appointment.Option{appointment.WithMetrics(m), appointment.WithLogger(log)}
	queueOpts := []queue.Option{queue.WithMetrics(m), queue.WithLogger(log)}
	if pgPool != nil {
		doctorOpts = append(doctorOpts, doctor.WithRepository(doctor.NewPgRepository(pgPool)))
		apptOpts = append(apptOpts, appointment.WithRepository(appointment.NewPgRepository(pgPool)))
		queueOpts = append(queueOpts, queue.WithRepository(queue.NewPgRepository(pgPool)))
	}
	if rdb != nil {
		apptOpts = append(apptOpts, appointment.WithLocker(redisclient.NewSlotLocker(rdb, cfg.LockTTL)))
	}
	// queue and slot state live in this process; run one api-server per database
	log.Info().Str("deployment", "single-writer").Msg("state is owned by this instance")

	directory := doctor.NewDirectory(clk, ids, doctorOpts...)
	store := appointment.NewStore(directory, clk, ids, appointment.Config{
		Location:     cfg.Location,
		CancelNotice: cfg.CancelNotice,
	}, apptOpts...)
	engine := queue.NewEngine(directory, clk, ids, queue.Config{
		DefaultConsultation: cfg.DefaultConsultation,
		Alpha:               cfg.ConsultationAlpha,
	}, queueOpts...)

	// Restore before serving; doctors first since the others look them up
	loadCtx, cancelLoad := context.WithTimeout(rootCtx, 30*time.Second)
	for _, load := range []func(context.Context) error{directory.Load, store.Load, engine.Load} {
		if err := load(loadCtx); err != nil {
			cancelLoad()
			log.Fatal().Err(err).Msg("restore state")
		}
	}
	cancelLoad()

	var wg sync.WaitGroup
	hub := events.NewHub(64)
	var publisher events.Publisher = hub
	if rdb != nil {
		// events go out on Redis for external consumers and come back through the relay
		publisher = redisclient.NewEventPublisher(rdb)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := redisclient.Relay(rootCtx, rdb, hub, log); err != nil {
				log.Error().Err(err).Msg("queue event relay stopped")
			}
		}()
	}

	svc := scheduling.NewService(directory, store, engine, clk, cfg.Location,
		scheduling.WithPublisher(publisher),
		scheduling.WithMetrics(m),
		scheduling.WithLogger(log),
	)

	if cfg.NoShowSweepInterval > 0 {
		w := sweeper.New(svc, cfg.NoShowSweepInterval, cfg.NoShowGrace, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(rootCtx)
		}()
	}

	routerCfg := api.RouterConfig{
		Service:        svc,
		Events:         hub,
		PgPool:         pgPool,
		Logger:         log,
		Metrics:        m,
		Gatherer:       reg,
		JWTSecret:      cfg.JWTSecret,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Env:            cfg.Env,
		Version:        cfg.Version,
	}
	if rdb != nil {
		routerCfg.Redis = rdb
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(routerCfg),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return rootCtx },
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("http server failed")
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	wg.Wait()

	log.Info().Msg("api-server stopped")
}
