package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/syncroom/server/internal/client"
)

func main() {
	pflag.String("server-url", "ws://localhost:8080/api/v1/ws", "Server websocket endpoint")
	pflag.String("room-id", "", "Room to join")
	pflag.String("username", "guest", "Display name")
	pflag.String("client-id", "", "Client id to reuse across reconnects")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)
	viper.BindEnv("server-url", "CLIENT_SERVER_URL")
	viper.BindEnv("room-id", "CLIENT_ROOM_ID")
	viper.BindEnv("username", "CLIENT_USERNAME")
	viper.BindEnv("client-id", "CLIENT_ID")

	roomID := viper.GetString("room-id")
	if roomID == "" {
		log.Fatal("room-id is required")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	c := client.New(client.Config{
		ServerURL: viper.GetString("server-url"),
		RoomID:    roomID,
		Username:  viper.GetString("username"),
		ClientID:  viper.GetString("client-id"),
	}, nil, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}
