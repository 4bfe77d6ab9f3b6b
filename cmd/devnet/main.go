package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chainsafe/token-bridge/pkg/app"
	"github.com/chainsafe/token-bridge/pkg/app/devnet"
	"github.com/chainsafe/token-bridge/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (defaults apply when empty)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}

	var runner app.Runner = devnet.NewServer(cfg)
	if err := runner.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Devnet exited: %v\n", err)
		os.Exit(1)
	}
}
