// Package ingest loads the city, DMA and pipe source files into the spatial
// store. Each table is loaded at most once: a load is a no-op while the table
// holds any row.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/EmpoweredVote/EV-Geo/internal/apperr"
	"github.com/EmpoweredVote/EV-Geo/internal/cache"
	"github.com/EmpoweredVote/EV-Geo/internal/config"
	"github.com/EmpoweredVote/EV-Geo/internal/geodata"
	"github.com/EmpoweredVote/EV-Geo/internal/geometry"
	"github.com/EmpoweredVote/EV-Geo/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store is what a load needs from the spatial store.
type Store interface {
	Exists(ctx context.Context, table string) (bool, error)
	// InsertBatch persists rows (a pointer to a slice of models) in a single
	// transaction.
	InsertBatch(ctx context.Context, table string, rows any) error
}

// Paths locates the source file of each kind.
type Paths struct {
	Cities string
	Dmas   string
	Pipes  string
}

type Report struct {
	Kind    Kind
	RunID   string
	Loaded  bool
	Count   int
	Skipped int
}

// Message is the user-facing summary of a successful call.
func (r Report) Message() string {
	if r.Loaded {
		return "Data loaded successfully"
	}
	return "Data is already loaded"
}

type Loader struct {
	store  Store
	cache  cache.Cache
	paths  Paths
	policy string
}

// New builds a loader. A nil cache disables invalidation; an empty policy
// means config.PolicyFile.
func New(store Store, c cache.Cache, paths Paths, policy string) *Loader {
	if c == nil {
		c = cache.Nop{}
	}
	if policy == "" {
		policy = config.PolicyFile
	}
	return &Loader{store: store, cache: c, paths: paths, policy: policy}
}

func (l *Loader) Load(ctx context.Context, kind Kind) (Report, error) {
	switch kind {
	case KindCity:
		return run(ctx, l, citySource, l.paths.Cities)
	case KindDma:
		return run(ctx, l, dmaSource, l.paths.Dmas)
	case KindPipe:
		return run(ctx, l, pipeSource, l.paths.Pipes)
	}
	return Report{}, apperr.Invalid("unknown entity kind %q", kind)
}

func run[T any](ctx context.Context, l *Loader, src source[T], path string) (Report, error) {
	rep := Report{Kind: src.kind, RunID: uuid.NewString()}
	logger := log.With().Str("run_id", rep.RunID).Str("entity", string(src.kind)).Logger()
	entity := string(src.kind)

	loaded, err := l.store.Exists(ctx, src.table)
	if err != nil {
		metrics.LoadsTotal.WithLabelValues(entity, "failed").Inc()
		return rep, err
	}
	if loaded {
		metrics.LoadsTotal.WithLabelValues(entity, "already_loaded").Inc()
		logger.Info().Msg("table already loaded")
		return rep, nil
	}

	rows, skipped, err := read(ctx, src, path, l.policy, logger)
	rep.Skipped = skipped
	if err != nil {
		metrics.LoadsTotal.WithLabelValues(entity, "failed").Inc()
		return rep, fmt.Errorf("read %s: %w", path, err)
	}

	if len(rows) > 0 {
		err = l.store.InsertBatch(ctx, src.table, &rows)
		if errors.Is(err, apperr.ErrAlreadyLoaded) {
			metrics.LoadsTotal.WithLabelValues(entity, "already_loaded").Inc()
			logger.Info().Msg("table loaded concurrently")
			return rep, nil
		}
		if err != nil {
			metrics.LoadsTotal.WithLabelValues(entity, "failed").Inc()
			return rep, err
		}
	}

	rep.Loaded = true
	rep.Count = len(rows)
	metrics.LoadsTotal.WithLabelValues(entity, "loaded").Inc()
	metrics.RowsLoadedTotal.WithLabelValues(entity).Add(float64(rep.Count))

	if err := l.cache.Flush(ctx); err != nil {
		logger.Warn().Err(err).Msg("cache flush failed")
	}
	logger.Info().Int("rows", rep.Count).Int("skipped", rep.Skipped).Str("file", path).Msg("load complete")
	return rep, nil
}

// read maps every record of path. Geometry problems always drop just the row;
// other row errors abort the read under PolicyFile and drop the row under
// PolicyRow.
func read[T any](ctx context.Context, src source[T], path, policy string, logger zerolog.Logger) ([]T, int, error) {
	var (
		rows    []T
		skipped int
	)
	skip := func(rec Record, reason, msg string) {
		skipped++
		metrics.RowsSkippedTotal.WithLabelValues(string(src.kind), reason).Inc()
		logger.Warn().Int("line", rec.Line).Msg(msg)
	}

	err := eachRecord(ctx, path, src.comma, func(rec Record) error {
		v, res, err := mapRecord(src, rec.Fields)
		if err != nil {
			if policy == config.PolicyRow {
				skip(rec, "parse", err.Error())
				return nil
			}
			return fmt.Errorf("line %d: %w", rec.Line, err)
		}
		if res.Status == geometry.Skip {
			skip(rec, "geometry", res.Reason)
			return nil
		}
		rows = append(rows, v)
		return nil
	})
	return rows, skipped, err
}

// mapRecord builds a model from one record. A geometry Skip is reported
// through the Result, not as an error.
func mapRecord[T any](src source[T], f []string) (T, geometry.Result, error) {
	var zero T
	if len(f) < src.minFields {
		return zero, geometry.Result{}, fmt.Errorf("expected %d fields, got %d", src.minFields, len(f))
	}

	raw, err := src.geom(f)
	if err != nil {
		return zero, geometry.Result{}, err
	}
	res := geometry.Normalize(raw, src.geomKinds, src.key(f))
	switch {
	case res.Status == geometry.Skip:
		return zero, res, nil
	case res.Status == geometry.Empty && src.geomRequired:
		return zero, res, fmt.Errorf("missing geometry for %s", src.key(f))
	}

	v, err := src.row(f, geodata.NewGeometry(res.WKT))
	return v, res, err
}
