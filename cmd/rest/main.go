package main

import (
	"context"
	"log"

	"doc-chat-be/internal/bootstrap"
	"doc-chat-be/internal/config"
	"doc-chat-be/internal/server"
	"doc-chat-be/internal/tracer"
)

func main() {
	shutdownTracer := tracer.Init()
	defer shutdownTracer(context.Background())

	cfg := config.Load()

	container, err := bootstrap.NewContainer(cfg)
	if err != nil {
		log.Panicf("Unable to bootstrap application: %v", err)
	}
	defer container.Logger.Sync()

	srv := server.New(cfg, container)
	log.Fatal(srv.Run())
}
