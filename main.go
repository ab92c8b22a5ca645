package main

import (
	"context"
	"fmt"
	"os"

	logger "github.com/Easy-Infra-Ltd/easy-logger"

	"github.com/guardline/promptguard/src/config"
	"github.com/guardline/promptguard/src/gateway"
)

func main() {
	log := logger.CreateLoggerFromEnv(nil, "blue").With("process", "promptguard")

	cfgPath := "config.json"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	gw := gateway.New(cfg, log)
	if err := gw.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}
