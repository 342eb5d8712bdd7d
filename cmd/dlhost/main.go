package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/reglet-dev/dlhost/domain/errors"
	"github.com/reglet-dev/dlhost/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		d := errors.ToErrorDetail(err)
		fmt.Fprintf(os.Stderr, "dlhost: %s\n", d.Message)
		cancel()
		os.Exit(1)
	}
}
