package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kpetrov/jobscout/internal/budget"
	"github.com/kpetrov/jobscout/internal/filter"
	"github.com/kpetrov/jobscout/internal/pipeline"
	"github.com/kpetrov/jobscout/internal/profile"
	"github.com/kpetrov/jobscout/internal/secrets"
	"github.com/kpetrov/jobscout/internal/source"
	"github.com/kpetrov/jobscout/internal/store"
)

const defaultMinScore = 50

// freshnessWindows lists the sources whose feeds are append-only and need
// a recency cutoff. API-backed sources already constrain recency upstream.
var freshnessWindows = map[string]time.Duration{
	"Simplify New Grad":    7 * 24 * time.Hour,
	"Simplify Internships": 7 * 24 * time.Hour,
}

// buildPipeline assembles a ready-to-run pipeline from the config. The
// store is returned alongside so callers can run the notification pass
// after the pipeline; the returned cleanup closes it and must be called
// once done.
func buildPipeline(ctx context.Context, config *Config, logger *zap.Logger) (*pipeline.Pipeline, *store.Store, func(), error) {
	if config == nil {
		return nil, nil, nil, errors.New("config is required")
	}
	if config.Database == "" {
		return nil, nil, nil, errors.New("database DSN is required (config key database or DATABASE_URL)")
	}
	if config.Profile == nil || config.Profile.File == "" {
		return nil, nil, nil, errors.New("profile file is required under profile.file")
	}

	prof, err := profile.Load(config.Profile.File, config.Profile.SponsorshipCSV)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading profile: %w", err)
	}

	st, err := store.New(ctx, config.Database, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, nil, err
	}

	mgr, err := buildBudget(ctx, config, logger)
	if err != nil {
		st.Close()
		return nil, nil, nil, err
	}

	sources, err := buildSources(config, mgr, logger)
	if err != nil {
		st.Close()
		return nil, nil, nil, err
	}

	chain := filter.NewChain(logger,
		filter.NewCategory(),
		filter.NewLocation(),
		filter.NewSeniority(),
		filter.NewFreshness(freshnessWindows),
	)

	pl := pipeline.New(sources, chain, prof, st, mgr, config.Keywords, logger)
	return pl, st, st.Close, nil
}

// buildBudget wires the ActiveJobsDB credential pool. No configured keys
// means no manager; the source then reports an auth error and the run
// proceeds without it.
func buildBudget(ctx context.Context, config *Config, logger *zap.Logger) (*budget.Manager, error) {
	if config.Sources == nil || config.Sources.ActiveJobs == nil || len(config.Sources.ActiveJobs.Keys) == 0 {
		return nil, nil
	}

	creds := make([]*budget.Credential, 0, len(config.Sources.ActiveJobs.Keys))
	for _, k := range config.Sources.ActiveJobs.Keys {
		key, err := secrets.Load(secrets.Source{Name: "activejobs api key " + k.Name, File: k.KeyFile})
		if err != nil {
			return nil, err
		}
		quota := k.Quota
		if quota <= 0 {
			quota = 25
		}
		creds = append(creds, &budget.Credential{Name: k.Name, Key: key, Quota: quota})
	}

	var ckpt budget.Checkpointer
	if config.Redis != "" {
		client := redis.NewClient(&redis.Options{Addr: config.Redis})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		ckpt = budget.NewRedisCheckpointer(client, "")
	} else {
		ckpt = budget.NewMemoryCheckpointer()
	}

	mgr := budget.NewManager("activejobs", creds, ckpt, logger)
	if err := mgr.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restoring budget checkpoint: %w", err)
	}
	return mgr, nil
}

// buildSources assembles every source the config enables. Key-less sources
// are always on; keyed ones join only when their credentials resolve.
func buildSources(config *Config, mgr *budget.Manager, logger *zap.Logger) ([]source.Source, error) {
	sources := []source.Source{
		source.NewGreenhouse(logger),
		source.NewTheMuse(logger),
		source.NewRemotive(logger),
		source.NewSimplifyNewGrad(logger),
		source.NewSimplifyInternships(logger),
	}

	sc := config.Sources
	if sc == nil {
		return sources, nil
	}

	if len(sc.LeverCompanies) > 0 {
		sources = append(sources, source.NewLever(logger, sc.LeverCompanies))
	}
	if sc.Adzuna != nil && sc.Adzuna.AppID != "" {
		appKey, err := secrets.Load(secrets.Source{Name: "adzuna app key", File: sc.Adzuna.AppKeyFile})
		if err != nil {
			return nil, err
		}
		sources = append(sources, source.NewAdzuna(logger, sc.Adzuna.AppID, appKey))
	}
	if sc.SerpAPI != nil && sc.SerpAPI.APIKeyFile != "" {
		apiKey, err := secrets.Load(secrets.Source{Name: "serpapi key", File: sc.SerpAPI.APIKeyFile})
		if err != nil {
			return nil, err
		}
		sources = append(sources, source.NewSerpAPI(logger, apiKey))
	}
	if mgr != nil {
		sources = append(sources, source.NewActiveJobs(logger, mgr))
	}

	return sources, nil
}

func minScore(config *Config) int {
	if config != nil && config.MinScore > 0 {
		return config.MinScore
	}
	return defaultMinScore
}
