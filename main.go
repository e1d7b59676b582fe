package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/freekieb7/embedio/session/storage"
	"github.com/freekieb7/embedio/telemetry"
	"github.com/freekieb7/embedio/web"
	"github.com/freekieb7/embedio/websocket"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const serviceName = "embedio"

var logger = otelslog.NewLogger("github.com/freekieb7/embedio")

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	root := flags.String("path", ".", "folder to serve")
	port := flags.Int("port", 9696, "port to listen on")
	watch := flags.Bool("watch", false, "revalidate files against the filesystem on every request")
	otlp := flags.Bool("otlp", false, "export traces, metrics and logs over OTLP/gRPC")
	if err := flags.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := slog.Default()
	if *otlp {
		shutdown, err := telemetry.Setup(ctx, serviceName)
		if err != nil {
			return fmt.Errorf("setting up telemetry: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("Telemetry shutdown failed", slog.Any("error", err))
			}
		}()
		log = logger
	}

	server := web.NewWebServer(
		web.WithURLPrefix(fmt.Sprintf("http://*:%d/", *port)),
		web.WithServerLogger(log),
	).
		WithSessions("/", storage.NewMemorySessionStore()).
		WithModule("echo", websocket.NewModule("/ws/echo/", websocket.EchoHandler{},
			websocket.WithCompression(true),
			websocket.WithLogger(log))).
		WithStaticFolder("/", *root, web.WithWatch(*watch))

	server.OnStateChanged(func(_, state web.State) {
		log.Info("Server "+state.String(), slog.Int("port", *port), slog.String("path", *root))
	})

	return server.Run(ctx)
}
