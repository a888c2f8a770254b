package main

import (
	"context"
	"os/signal"
	"syscall"

	"transport-dispatch/internal/app"
)

// @title Transport dispatch API
// @version 1.0
// @description Tiered transport offers: primary, secondary and tertiary transporters.
// @BasePath /
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	container := app.MustBuildContainer(ctx)
	app.NewRunner().MustRun(container)
}
