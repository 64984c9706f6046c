package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tdicmd "github.com/telekom/tdi/pkg/tdi/cmd"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := tdicmd.DefaultConfig()
	cfg.Context = ctx
	root := tdicmd.NewRootCommand(cfg)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "tdi: %v\n", err)
		return 1
	}
	return 0
}
