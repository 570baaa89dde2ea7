// Package main runs the depths client against the platform services.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	depthscmd "github.com/louisbranch/depths.social/internal/cmd/depths"
)

func main() {
	cfg, args, err := depthscmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[DEPTHS] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := depthscmd.Run(ctx, cfg, args); err != nil {
		log.Fatalf("depths: %v", err)
	}
}
