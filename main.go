package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"order-service/cmd"
	"order-service/config"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (default: ./config/config.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	app, err := cmd.NewBuilder(cfg).Build(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build app: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
