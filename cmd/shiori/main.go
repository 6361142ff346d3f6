package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bdobrica/Shiori/common/environment"
	"github.com/bdobrica/Shiori/common/observability"
	"github.com/bdobrica/Shiori/common/version"
	"github.com/bdobrica/Shiori/internal/shiori/app"
)

func main() {
	fmt.Printf("Shiori\n")
	fmt.Printf("Version: %s\n", version.Version)
	fmt.Printf("Commit: %s\n", version.GitCommit)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Println()

	if err := environment.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	observability.Setup(environment.StringOr("LOG_LEVEL", "info"), environment.StringOr("LOG_FORMAT", "text"))

	config, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	shiori, err := app.New(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize Shiori: %v\n", err)
		os.Exit(1)
	}
	defer shiori.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := shiori.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error running Shiori: %v\n", err)
		shiori.Stop()
		os.Exit(1)
	}
}
