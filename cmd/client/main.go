package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"SHLink/internal/cli/commands"
	"SHLink/internal/config"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	os.Exit(run())
}

// run собирает конфиг (env + флаги) и передаёт оставшиеся аргументы диспетчеру.
func run() int {
	cfg := config.NewConfig()

	if cfg.Version {
		printVersion(commands.Out, cfg)
		return commands.ExitOK
	}

	// Ctrl-C прерывает текущий HTTP-запрос, а не процесс целиком
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return commands.Dispatch(ctx, cfg, flag.Args())
}

func printVersion(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "SHL CLI\nVersion: %s\nBuild date: %s\nServer: %s\n", version, buildDate, cfg.ServerURL)
}
