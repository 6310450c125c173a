package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"quire/state"
)

// Run is the action of the serve subcommand. It blocks until the context is
// canceled, then shuts the listener down gracefully.
func Run(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log

	address := env.Cfg.Server.Address
	if a := cmd.String("address"); len(a) > 0 {
		address = a
	}

	timeout := time.Duration(env.Cfg.Server.TimeoutSec) * time.Second
	srv := &http.Server{
		Addr:         address,
		Handler:      NewServer(env.Cfg, log),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info("Server listening", zap.String("address", address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		if err != nil {
			return fmt.Errorf("unable to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("unable to shut down cleanly: %w", err)
	}
	return nil
}
