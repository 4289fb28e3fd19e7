package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/beepdata/internal/server"
	"github.com/dmitrijs2005/beepdata/internal/server/config"
)

func main() {

	// a missing .env file is fine, real deployments set the environment
	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)

}
