package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"livestock/app/server"
	"livestock/types"

	"github.com/joho/godotenv"
)

func init() {
	loadEnvVariables()
}

func main() {
	cfg, err := types.LoadConfig()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.NewServer(cfg).Run(ctx); err != nil {
		log.Fatal("server error: ", err)
	}
	log.Println("Service stopped successfully")
}

func loadEnvVariables() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}
}
