package main

import (
	"github.com/spf13/cobra"

	"github.com/datallboy/execlogs/internal/domain"
	"github.com/datallboy/execlogs/internal/engine"
	"github.com/datallboy/execlogs/internal/infra/config"
)

// downloadFlags maps viper keys to the flags that override them.
var downloadFlags = map[string]string{
	"spark.master":         "master",
	"spark.app_id":         "app-id",
	"download.dir":         "dir",
	"download.concurrency": "threads",
	"download.page_size":   "page-size",
	"archive.name":         "zip",
}

// downloadDefaults keeps a one-shot download from creating a history
// database unless the configuration asks for one.
var downloadDefaults = map[string]any{
	"store.driver": "none",
}

func downloadCmd(root *rootOptions) *cobra.Command {
	var reportPath string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download stdout and stderr of every executor of an application",
		Example: `  execlogs download -m http://spark-master:8080 -a app-20160106184227-0006 -t 4
  execlogs download -m http://spark-master:8080 -a app-20160106184227-0006 -d /tmp/logs -z logs.zip`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root, cmd.Flags(), downloadFlags, downloadDefaults)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			if err := cfg.ValidateRun(); err != nil {
				return &exitError{code: exitFailure, err: err}
			}

			appCtx, cleanup, err := buildContext(cfg)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			defer cleanup()

			svc := engine.NewService(appCtx)
			run, err := svc.Download(cmd.Context(), domain.RunRequest{
				AppID:  cfg.Spark.AppID,
				Master: cfg.Spark.Master,
			})

			if run.Report != nil {
				printSummary(cmd.OutOrStdout(), run)
			}
			if reportPath != "" {
				if werr := writeReport(reportPath, run); werr != nil {
					appCtx.Logger.Error("Failed to write report: %v", werr)
				}
			}

			if err != nil && run.Report == nil {
				return &exitError{code: exitFailure, err: err}
			}
			if err != nil {
				return &exitError{code: exitPartial, err: err}
			}
			if run.Status != domain.StatusCompleted {
				return &exitError{code: exitPartial}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringP("master", "m", "", "Spark master web UI url, e.g. http://spark-master:8080")
	f.StringP("app-id", "a", "", "application id, e.g. app-20160106184227-0006")
	f.StringP("dir", "d", ".", "directory the application folder is created in")
	f.IntP("threads", "t", config.DefaultConcurrency, "executors downloaded in parallel")
	f.StringP("zip", "z", "", "also pack the downloaded logs into this zip file")
	f.Int64("page-size", config.DefaultPageSize, "bytes requested per log page")
	f.StringVar(&reportPath, "report", "", "write the run report to this file (.json, otherwise YAML)")

	return cmd
}
