package app

import (
	"context"

	"github.com/datallboy/execlogs/internal/domain"
	"github.com/datallboy/execlogs/internal/infra/config"
	"github.com/datallboy/execlogs/internal/infra/logger"
	"github.com/datallboy/execlogs/internal/infra/metrics"
)

// PageFetcher reads one window of a remote log stream.
// This allows the engine to download pages without importing the sparkui package
type PageFetcher interface {
	Fetch(ctx context.Context, ep domain.Endpoint, offset, maxBytes int64) (domain.Page, error)
}

// Discoverer lists the executors of an application from its master.
type Discoverer interface {
	Discover(ctx context.Context, master, appID string) ([]domain.ExecutorTarget, error)
}

// Packer bundles a finished download into a single archive.
type Packer interface {
	// Pack writes every regular file under srcDir into the archive at dest.
	// Entry names are relative to the parent of srcDir, so the archive
	// starts with srcDir's base name.
	Pack(ctx context.Context, srcDir, dest string) error

	// Returns the human-readable name of this packer (e.g. "ZIP")
	Name() string
}

// Uploader copies a local file to remote storage and returns where it went.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// RunStore persists run history. GetRun returns nil, nil for an unknown id.
type RunStore interface {
	SaveRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*domain.Run, error)
	Close() error
}

// Context holds the core environment and shared resources for execlogs.
// Optional collaborators (Store, Packer, Uploader, Metrics) may be nil.
type Context struct {
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *metrics.Metrics

	Fetcher    PageFetcher
	Discoverer Discoverer
	Packer     Packer
	Uploader   Uploader
	Store      RunStore
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	if log == nil {
		log = logger.Nop()
	}
	return &Context{
		Config: cfg,
		Logger: log,
	}
}
