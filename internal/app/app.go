package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/syncroom/server/internal/controller"
	"github.com/syncroom/server/internal/repository/connection/inmemory"
	"github.com/syncroom/server/internal/repository/room/redis"
	"github.com/syncroom/server/internal/service/room"
	"github.com/syncroom/server/internal/spatial"
	"github.com/syncroom/server/pkg/ctxlogger"
	"github.com/syncroom/server/pkg/redisclient"
)

type AppConfig struct {
	Host            string  `json:"host"`
	Port            int     `json:"port"`
	LogLevel        string  `json:"log_level"`
	MembersLimit    int     `json:"members_limit"`
	PlaylistLimit   int     `json:"playlist_limit"`
	ScheduleDelayMs int     `json:"schedule_delay_ms"`
	GracePeriodSec  int     `json:"grace_period_sec"`
	GridSize        float64 `json:"grid_size"`
	GainCurve       string  `json:"gain_curve"`
	RedisPort       int     `json:"redis_port"`
	RedisHost       string  `json:"redis_host"`
	RedisPassword   string  `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.MembersLimit < 1 {
		return fmt.Errorf("members limit must be greater than 0")
	}
	if cfg.PlaylistLimit < 1 {
		return fmt.Errorf("playlist limit must be greater than 0")
	}
	if cfg.ScheduleDelayMs < 0 {
		return fmt.Errorf("schedule delay must not be negative")
	}
	if cfg.GridSize <= 0 {
		return fmt.Errorf("grid size must be greater than 0")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		log.Fatal(err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	logger := slog.New(&h)

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	roomRepo := redis.NewRepo(rc, logger, 24*14*time.Hour)
	connectionRepo := inmemory.NewRepo(logger)
	roomService, err := room.NewService(roomRepo, connectionRepo, room.Config{
		MembersLimit:  cfg.MembersLimit,
		PlaylistLimit: cfg.PlaylistLimit,
		ScheduleDelay: time.Duration(cfg.ScheduleDelayMs) * time.Millisecond,
		GracePeriod:   time.Duration(cfg.GracePeriodSec) * time.Second,
		GridSize:      cfg.GridSize,
		GainCurve:     spatial.Curve(cfg.GainCurve),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create room service: %w", err)
	}
	controller := controller.NewController(roomService, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: controller.GetMux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
