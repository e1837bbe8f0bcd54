package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/testimony-project/testimony/internal/cluster"
	"github.com/testimony-project/testimony/internal/config"
	"github.com/testimony-project/testimony/internal/health"
	"github.com/testimony-project/testimony/internal/pipeline"
	"github.com/testimony-project/testimony/internal/replace"
	"github.com/testimony-project/testimony/internal/tags"
	"github.com/testimony-project/testimony/internal/termstore"
	"github.com/testimony-project/testimony/pkg/provider/ner"
	"github.com/testimony-project/testimony/pkg/provider/ner/regexner"
)

// components bundles the assembled pipeline with the dependencies health
// probes need direct access to. cleanup releases resources such as database
// pools and must be called when the components are no longer needed.
type components struct {
	pipeline   *pipeline.Pipeline
	recognizer ner.Provider
	store      termstore.Store // nil when no term store is configured
	cleanup    func()
}

// buildComponents assembles the cleaning pipeline from the loaded
// configuration.
func buildComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	cleanup := func() {}

	recognizer, err := buildRecognizer(cfg.Recognizer)
	if err != nil {
		return nil, err
	}

	clusterOpts := []cluster.Option{}
	if cfg.Clustering.Threshold > 0 {
		clusterOpts = append(clusterOpts, cluster.WithThreshold(cfg.Clustering.Threshold))
	}
	if cfg.Clustering.LowThreshold > 0 {
		clusterOpts = append(clusterOpts, cluster.WithLowThreshold(cfg.Clustering.LowThreshold))
	}
	if len(cfg.Clustering.VariantRules) > 0 {
		clusterOpts = append(clusterOpts, cluster.WithVariantRules(cfg.Clustering.VariantRules))
	}
	if len(cfg.Clustering.ExcludedWords) > 0 {
		excluded := make(map[cluster.EntityType][]string, len(cfg.Clustering.ExcludedWords))
		for typ, words := range cfg.Clustering.ExcludedWords {
			excluded[cluster.EntityType(typ)] = words
		}
		clusterOpts = append(clusterOpts, cluster.WithExcludedWords(excluded))
	}

	store, storeCleanup, err := buildTermStore(ctx, cfg.TermStore)
	if err != nil {
		return nil, err
	}
	if storeCleanup != nil {
		cleanup = storeCleanup
	}
	if store != nil {
		clusterOpts = append(clusterOpts, cluster.WithTermStore(store))
	}

	extractor, err := buildExtractor(cfg.Tags)
	if err != nil {
		cleanup()
		return nil, err
	}

	pipeOpts := []pipeline.Option{
		pipeline.WithClusterer(cluster.New(clusterOpts...)),
		pipeline.WithExtractor(extractor),
	}
	if len(cfg.Replacement.Corrections) > 0 {
		pipeOpts = append(pipeOpts, pipeline.WithCorrections(cfg.Replacement.Corrections))
	}
	if len(cfg.Replacement.AmbiguousWords) > 0 {
		pipeOpts = append(pipeOpts, pipeline.WithAmbiguousWords(cfg.Replacement.AmbiguousWords))
	}
	if cfg.Replacement.Policy != "" {
		pipeOpts = append(pipeOpts, pipeline.WithReplacePolicy(replace.Policy(cfg.Replacement.Policy)))
	}
	if cfg.Citation.LinesPerPage > 0 {
		pipeOpts = append(pipeOpts, pipeline.WithLinesPerPage(cfg.Citation.LinesPerPage))
	}

	p, err := pipeline.New(recognizer, pipeOpts...)
	if err != nil {
		cleanup()
		return nil, err
	}
	return &components{
		pipeline:   p,
		recognizer: recognizer,
		store:      store,
		cleanup:    cleanup,
	}, nil
}

// healthChecks builds readiness probes for the configured dependencies.
func (c *components) healthChecks() []health.Checker {
	checks := []health.Checker{health.Recognizer(c.recognizer)}
	if c.store != nil {
		checks = append(checks, health.TermStore(c.store))
	}
	return checks
}

// buildRecognizer resolves the configured entity recognizer, defaulting to
// the built-in regex backend when none is named.
func buildRecognizer(cfg config.RecognizerConfig) (ner.Provider, error) {
	if cfg.Primary.Name == "" && len(cfg.Fallbacks) == 0 {
		return regexner.New(), nil
	}
	return config.DefaultRegistry().BuildRecognizer(cfg)
}

// buildTermStore opens the configured Indigenous term store, if any. The
// returned cleanup func is nil when there is nothing to release.
func buildTermStore(ctx context.Context, cfg config.TermStoreConfig) (termstore.Store, func(), error) {
	var (
		store   termstore.Store
		cleanup func()
	)
	switch {
	case cfg.PostgresDSN != "":
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("cli: connect term store: %w", err)
		}
		pg := termstore.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("cli: migrate term store: %w", err)
		}
		store = pg
		cleanup = pool.Close
	case cfg.File != "":
		mem, err := termstore.LoadTermFile(cfg.File)
		if err != nil {
			return nil, nil, fmt.Errorf("cli: load term file: %w", err)
		}
		store = mem
	default:
		return nil, nil, nil
	}

	if cfg.CacheTTL > 0 {
		store = termstore.NewCached(store, cfg.CacheTTL.Std())
	}
	return store, cleanup, nil
}

func buildExtractor(cfg config.TagsConfig) (*tags.Extractor, error) {
	opts := []tags.Option{}
	if len(cfg.ResearchCategories) > 0 {
		opts = append(opts, tags.WithResearchCategories(cfg.ResearchCategories))
	}
	if len(cfg.SurveyQuestions) > 0 {
		opts = append(opts, tags.WithSurveyQuestions(cfg.SurveyQuestions))
	}
	if len(cfg.IndigenousTerms) > 0 {
		opts = append(opts, tags.WithIndigenousTerms(cfg.IndigenousTerms))
	}
	return tags.New(opts...)
}
