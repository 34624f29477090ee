package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/budgetbook/internal/client"
	"github.com/dmitrijs2005/budgetbook/internal/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	app, err := client.NewApp(ctx, cfg, os.Stdin, os.Stdout)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
