// Package main starts the frame session process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	framecmd "github.com/louisbranch/boardframe/internal/cmd/frame"
)

func main() {
	cfg, err := framecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[FRAME] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := framecmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to run session: %v", err)
	}
}
