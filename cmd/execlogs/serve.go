package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"

	"github.com/datallboy/execlogs/internal/api"
	"github.com/datallboy/execlogs/internal/engine"
)

var serveFlags = map[string]string{
	"server.port":          "port",
	"spark.master":         "master",
	"download.dir":         "dir",
	"download.concurrency": "threads",
}

const shutdownTimeout = 10 * time.Second

func serveCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept download runs over HTTP and expose run history and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root, cmd.Flags(), serveFlags, nil)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}

			appCtx, cleanup, err := buildContext(cfg)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			defer cleanup()

			ctx, stop := context.WithCancel(cmd.Context())

			queue := engine.NewRunQueue(appCtx, engine.NewService(appCtx))
			go queue.Start(ctx)
			// the store stays open until the active run is recorded
			defer func() {
				stop()
				if run := queue.Active(); run != nil {
					appCtx.Logger.Info("Waiting for run %s to finish", run.ID)
				}
				<-queue.Done()
			}()

			e := echo.New()
			api.RegisterRoutes(e, appCtx, queue)

			srv := &http.Server{
				Addr:              ":" + cfg.Server.Port,
				Handler:           e,
				ReadHeaderTimeout: 10 * time.Second,
				ErrorLog:          log.New(appCtx.Logger, "", 0),
			}

			errCh := make(chan error, 1)
			go func() {
				appCtx.Logger.Info("Listening on %s", srv.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return &exitError{code: exitFailure, err: err}
				}
				return nil
			case <-ctx.Done():
			}

			appCtx.Logger.Info("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	f := cmd.Flags()
	f.String("port", "8080", "HTTP listen port")
	f.StringP("master", "m", "", "default Spark master for requests without one")
	f.StringP("dir", "d", ".", "directory application folders are created in")
	f.IntP("threads", "t", 1, "executors downloaded in parallel per run")

	return cmd
}
