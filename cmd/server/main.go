package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/syncroom/server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 8080,
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	membersLimit = configVar[int]{
		envKey:       "SERVER_MEMBERS_LIMIT",
		flagKey:      "members-limit",
		defaultValue: 16,
	}
	playlistLimit = configVar[int]{
		envKey:       "SERVER_PLAYLIST_LIMIT",
		flagKey:      "playlist-limit",
		defaultValue: 50,
	}
	scheduleDelayMs = configVar[int]{
		envKey:       "SERVER_SCHEDULE_DELAY_MS",
		flagKey:      "schedule-delay-ms",
		defaultValue: 400,
	}
	gracePeriodSec = configVar[int]{
		envKey:       "SERVER_GRACE_PERIOD_SEC",
		flagKey:      "grace-period-sec",
		defaultValue: 10,
	}
	gridSize = configVar[float64]{
		envKey:       "SERVER_GRID_SIZE",
		flagKey:      "grid-size",
		defaultValue: 100,
	}
	gainCurve = configVar[string]{
		envKey:       "SERVER_GAIN_CURVE",
		flagKey:      "gain-curve",
		defaultValue: "exponential",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Int(membersLimit.flagKey, membersLimit.defaultValue, "Maximum number of clients in a room")
	pflag.Int(playlistLimit.flagKey, playlistLimit.defaultValue, "Maximum number of sources in a room playlist")
	pflag.Int(scheduleDelayMs.flagKey, scheduleDelayMs.defaultValue, "Delay added to scheduled action execute times")
	pflag.Int(gracePeriodSec.flagKey, gracePeriodSec.defaultValue, "How long an empty room survives before deletion")
	pflag.Float64(gridSize.flagKey, gridSize.defaultValue, "Side length of the spatial grid")
	pflag.String(gainCurve.flagKey, gainCurve.defaultValue, "Spatial gain falloff curve (exponential, linear, quadratic)")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(membersLimit.flagKey, membersLimit.envKey)
	viper.BindEnv(playlistLimit.flagKey, playlistLimit.envKey)
	viper.BindEnv(scheduleDelayMs.flagKey, scheduleDelayMs.envKey)
	viper.BindEnv(gracePeriodSec.flagKey, gracePeriodSec.envKey)
	viper.BindEnv(gridSize.flagKey, gridSize.envKey)
	viper.BindEnv(gainCurve.flagKey, gainCurve.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(membersLimit.flagKey, membersLimit.defaultValue)
	viper.SetDefault(playlistLimit.flagKey, playlistLimit.defaultValue)
	viper.SetDefault(scheduleDelayMs.flagKey, scheduleDelayMs.defaultValue)
	viper.SetDefault(gracePeriodSec.flagKey, gracePeriodSec.defaultValue)
	viper.SetDefault(gridSize.flagKey, gridSize.defaultValue)
	viper.SetDefault(gainCurve.flagKey, gainCurve.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)

	config := &app.AppConfig{
		Host:            viper.GetString(host.flagKey),
		Port:            viper.GetInt(port.flagKey),
		LogLevel:        viper.GetString(logLevel.flagKey),
		MembersLimit:    viper.GetInt(membersLimit.flagKey),
		PlaylistLimit:   viper.GetInt(playlistLimit.flagKey),
		ScheduleDelayMs: viper.GetInt(scheduleDelayMs.flagKey),
		GracePeriodSec:  viper.GetInt(gracePeriodSec.flagKey),
		GridSize:        viper.GetFloat64(gridSize.flagKey),
		GainCurve:       viper.GetString(gainCurve.flagKey),
		RedisPort:       viper.GetInt(redisPort.flagKey),
		RedisHost:       viper.GetString(redisHost.flagKey),
		RedisPassword:   viper.GetString(redisPassword.flagKey),
	}

	return config
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
