// Package pipeline runs the harvest, enrich and render stages in sequence.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/venuemap/venue-cli/internal/model"
	"github.com/venuemap/venue-cli/internal/render"
	"github.com/venuemap/venue-cli/internal/store"
)

// Harvester collects records from the listing.
type Harvester interface {
	Harvest(ctx context.Context, listingURL string) (*model.Summary, error)
}

// Enricher resolves coordinates for stored records.
type Enricher interface {
	Enrich(ctx context.Context) (*model.Summary, error)
}

// Deps are the stage implementations. Harvester may be nil when the harvest
// stage is always skipped.
type Deps struct {
	Harvester Harvester
	Enricher  Enricher
	Records   *store.RecordStore
	Renderer  render.Renderer
}

// Options selects which stages run.
type Options struct {
	ListingURL  string
	SkipHarvest bool
	SkipEnrich  bool
	// Output is the map artifact path. Empty skips rendering.
	Output string
}

// Pipeline runs the stages against shared stores.
type Pipeline struct {
	deps Deps
}

// New creates a Pipeline.
func New(deps Deps) *Pipeline {
	return &Pipeline{deps: deps}
}

// Run executes the selected stages in order and returns the merged summary.
// A stage error stops the run; the summary collected so far is still
// returned alongside it.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*model.Summary, error) {
	log := zap.L().With(zap.String("component", "pipeline"))
	summary := model.NewSummary("run")

	stage := func(name string, fn func() (*model.Summary, error)) error {
		start := time.Now()
		log.Info("stage starting", zap.String("stage", name))
		s, err := fn()
		summary.Merge(s)
		if err != nil {
			log.Error("stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.Error(err),
			)
			return eris.Wrapf(err, "pipeline: %s", name)
		}
		log.Info("stage complete",
			zap.String("stage", name),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil
	}

	if !opts.SkipHarvest {
		if p.deps.Harvester == nil {
			return summary, eris.New("pipeline: harvest requested without a harvester")
		}
		if err := stage("harvest", func() (*model.Summary, error) {
			return p.deps.Harvester.Harvest(ctx, opts.ListingURL)
		}); err != nil {
			summary.Finish()
			return summary, err
		}
	}

	if !opts.SkipEnrich {
		if err := stage("enrich", func() (*model.Summary, error) {
			return p.deps.Enricher.Enrich(ctx)
		}); err != nil {
			summary.Finish()
			return summary, err
		}
	}

	if opts.Output != "" {
		if err := stage("render", func() (*model.Summary, error) {
			n, err := RenderFile(ctx, p.deps.Records, p.deps.Renderer, opts.Output)
			return &model.Summary{Rendered: n}, err
		}); err != nil {
			summary.Finish()
			return summary, err
		}
	}

	summary.Finish()
	return summary, nil
}

// RenderFile renders the stored records that have coordinates to path and
// returns how many markers were written. The file is replaced atomically.
func RenderFile(ctx context.Context, records *store.RecordStore, r render.Renderer, path string) (int, error) {
	recs, err := records.Load(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "render: load records")
	}
	markers := render.Renderable(recs)

	err = WriteFileAtomic(path, func(f *os.File) error {
		return r.Render(ctx, f, markers)
	})
	if err != nil {
		return 0, err
	}

	zap.L().Info("map rendered",
		zap.String("component", "render"),
		zap.String("path", path),
		zap.Int("markers", len(markers)),
		zap.Int("skipped", len(recs)-len(markers)),
	)
	return len(markers), nil
}

// WriteFileAtomic writes to a temp file in path's directory via fn, then
// renames it over path.
func WriteFileAtomic(path string, fn func(f *os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "pipeline: create dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "pipeline: create temp file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := fn(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "pipeline: close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "pipeline: rename to %s", path)
	}
	return nil
}
