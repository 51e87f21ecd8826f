// Package pipeline orchestrates one aggregation run: fan out to every
// configured source, then filter, score, dedup and persist the results in
// a single pass.
package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kpetrov/jobscout/internal/budget"
	"github.com/kpetrov/jobscout/internal/filter"
	"github.com/kpetrov/jobscout/internal/jobs"
	"github.com/kpetrov/jobscout/internal/profile"
	"github.com/kpetrov/jobscout/internal/scorer"
	"github.com/kpetrov/jobscout/internal/source"
	"github.com/kpetrov/jobscout/internal/store"
)

// Storage is the slice of the store the pipeline needs. Narrow on purpose
// so tests can run against an in-memory fake.
type Storage interface {
	ExistingKeys(ctx context.Context) (map[string]bool, error)
	InsertBatch(ctx context.Context, postings []*jobs.Posting) (int, error)
	LogRun(ctx context.Context, run store.Run) error
}

// SourceReport is the per-source outcome of the fetch stage.
type SourceReport struct {
	Fetched int    `json:"fetched"`
	Err     string `json:"error,omitempty"`
}

// Report summarizes one run.
type Report struct {
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	Sources    map[string]SourceReport `json:"sources"`
	Fetched    int                     `json:"fetched"`
	Filtered   int                     `json:"filtered"`
	Scored     int                     `json:"scored"`
	Stored     int                     `json:"stored"`
	Steps      []filter.Step           `json:"steps"`
	TopNew     []*jobs.Posting         `json:"top_new"`
}

// Pipeline wires sources, filters, the scoring profile and the store.
type Pipeline struct {
	sources  []source.Source
	filters  *filter.Chain
	profile  *profile.Profile
	storage  Storage
	budget   *budget.Manager
	keywords []string
	logger   *zap.Logger

	// FetchLimit caps concurrent source fetches.
	FetchLimit int
	// TopN is how many best new postings the report carries.
	TopN int
}

func New(sources []source.Source, filters *filter.Chain, prof *profile.Profile,
	storage Storage, mgr *budget.Manager, keywords []string, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		sources:    sources,
		filters:    filters,
		profile:    prof,
		storage:    storage,
		budget:     mgr,
		keywords:   keywords,
		logger:     logger.Named("pipeline"),
		FetchLimit: 4,
		TopN:       5,
	}
}

// Run executes one full aggregation pass. A failing source is contained:
// it contributes nothing and its error lands in the report, but the run
// proceeds with the remaining sources.
func (pl *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		StartedAt: time.Now().UTC(),
		Sources:   make(map[string]SourceReport, len(pl.sources)),
	}

	query := source.Query{Keywords: pl.keywords}
	if pl.budget != nil {
		cred, err := pl.budget.KeyForRun()
		if err != nil {
			// Metered sources sit this run out; the free ones still run.
			pl.logger.Warn("no credential available for metered sources", zap.Error(err))
		} else {
			query.Credential = cred
		}
	}

	collected := pl.fetchAll(ctx, query, report)
	report.Fetched = collected.Len()

	_, steps := pl.filters.Run(collected)
	report.Steps = steps
	report.Filtered = collected.Len()

	scored := pl.score(collected)
	report.Scored = scored.Len()

	fresh, err := pl.dedup(ctx, scored)
	if err != nil {
		return report, err
	}

	stored, err := pl.storage.InsertBatch(ctx, fresh.Items)
	if err != nil {
		return report, err
	}
	report.Stored = stored
	report.TopNew = fresh.TopN(pl.TopN)
	report.FinishedAt = time.Now().UTC()

	if err := pl.storage.LogRun(ctx, store.Run{
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Fetched:    report.Fetched,
		Filtered:   report.Filtered,
		Scored:     report.Scored,
		Stored:     report.Stored,
		BySource:   fresh.BySource(),
	}); err != nil {
		pl.logger.Warn("run not logged", zap.Error(err))
	}
	if pl.budget != nil {
		if err := pl.budget.Flush(ctx); err != nil {
			pl.logger.Warn("budget checkpoint not saved", zap.Error(err))
		}
	}

	pl.logger.Info("run finished",
		zap.Int("fetched", report.Fetched),
		zap.Int("filtered", report.Filtered),
		zap.Int("scored", report.Scored),
		zap.Int("stored", report.Stored),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

// fetchAll runs every source concurrently with a bounded worker count and
// merges results. Source errors never cancel the group.
func (pl *Pipeline) fetchAll(ctx context.Context, query source.Query, report *Report) *jobs.Postings {
	var mu sync.Mutex
	collected := &jobs.Postings{}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(pl.FetchLimit)
	for _, src := range pl.sources {
		src := src
		g.Go(func() error {
			postings, err := src.Fetch(ctx, query)

			mu.Lock()
			defer mu.Unlock()
			sr := SourceReport{Fetched: len(postings)}
			if err != nil {
				sr.Err = err.Error()
				pl.logger.Warn("source failed", zap.String("source", src.Name()), zap.Error(err))
			}
			report.Sources[src.Name()] = sr
			collected.Append(postings...)
			return nil
		})
	}
	g.Wait()
	return collected
}

// score evaluates every surviving posting against the profile and keeps
// only the ones worth persisting. Score zero means a dealbreaker or a
// non-technical role and is dropped here.
func (pl *Pipeline) score(ps *jobs.Postings) *jobs.Postings {
	kept := &jobs.Postings{}
	for _, p := range ps.Items {
		p.Score, p.Breakdown = scorer.Score(p, pl.profile)
		if p.Score <= 0 {
			continue
		}
		p.Status = jobs.StatusNew
		kept.Append(p)
	}
	return kept
}

// dedup collapses within-run duplicates by identity key, keeping the
// highest-scored copy, then drops every key already present in the store.
// Archived keys are in that set too, which is what keeps them buried.
func (pl *Pipeline) dedup(ctx context.Context, ps *jobs.Postings) (*jobs.Postings, error) {
	existing, err := pl.storage.ExistingKeys(ctx)
	if err != nil {
		return nil, err
	}

	best := make(map[string]*jobs.Posting, ps.Len())
	var order []string
	for _, p := range ps.Items {
		key := p.IdentityKey()
		if existing[key] {
			continue
		}
		current, seen := best[key]
		if !seen {
			best[key] = p
			order = append(order, key)
			continue
		}
		if p.Score > current.Score {
			best[key] = p
		}
	}

	fresh := &jobs.Postings{}
	for _, key := range order {
		fresh.Append(best[key])
	}
	pl.logger.Debug("dedup",
		zap.Int("in", ps.Len()), zap.Int("out", fresh.Len()), zap.Int("known_keys", len(existing)))
	return fresh, nil
}
