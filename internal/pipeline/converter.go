// Package pipeline runs a whole conversion: read the export, infer media
// groups, assemble posts and write the artifact.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"tgblog/internal/assemble"
	"tgblog/internal/constants"
	"tgblog/internal/errors"
	"tgblog/internal/export"
	"tgblog/internal/grouping"
	"tgblog/internal/metrics"
	"tgblog/internal/models"
	"tgblog/internal/render"
	"tgblog/internal/tracing"
	"tgblog/pkg/circuitbreaker"
	"tgblog/pkg/media"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Stage names used for spans, timers and log entries.
const (
	StageRead     = "read"
	StageGroup    = "group"
	StageAssemble = "assemble"
	StageWrite    = "write"
	StageArchive  = "archive"
)

// Archive receives a copy of every successfully written artifact.
type Archive interface {
	ReplacePosts(ctx context.Context, runID string, posts []models.Post) error
}

// ResolverFactory builds the media resolver for one export directory.
type ResolverFactory func(dir string) media.Resolver

// Result describes a finished run.
type Result struct {
	RunID      string
	OutputPath string
	Messages   int
	Groups     int
	Posts      []models.Post
	Export     export.Stats
	Assembly   assemble.Stats
	Duration   time.Duration
}

// Converter holds everything a run needs. It keeps no state between runs.
type Converter struct {
	output    models.OutputConfig
	grouping  grouping.Options
	assembler *assemble.Assembler
	resolvers ResolverFactory
	archive   Archive
	metrics   *metrics.Registry
	logger    *logrus.Logger
}

// Option customises a Converter.
type Option func(*Converter)

// WithArchive stores each run's posts in a.
func WithArchive(a Archive) Option {
	return func(c *Converter) { c.archive = a }
}

// WithResolverFactory replaces the on-disk media resolver.
func WithResolverFactory(f ResolverFactory) Option {
	return func(c *Converter) { c.resolvers = f }
}

// WithMetrics records run metrics into r instead of a private registry.
func WithMetrics(r *metrics.Registry) Option {
	return func(c *Converter) { c.metrics = r }
}

// NewConverter creates a Converter from cfg.
func NewConverter(cfg *models.Config, logger *logrus.Logger, opts ...Option) *Converter {
	if logger == nil {
		logger = logrus.New()
	}

	c := &Converter{
		output:    cfg.Output,
		grouping:  GroupingOptions(cfg.Grouping),
		assembler: assemble.NewAssembler(render.New(render.Options{
			MentionBaseURL: cfg.Render.MentionBaseURL,
			EmojiPrefix:    cfg.Render.EmojiPrefix,
		}), logger),
		resolvers: FileResolvers(cfg.Media, logger),
		metrics:   metrics.NewRegistry(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GroupingOptions converts the grouping config section.
func GroupingOptions(cfg models.GroupingConfig) grouping.Options {
	opts := grouping.DefaultOptions()
	if cfg.WindowSec > 0 {
		opts.Window = time.Duration(cfg.WindowSec) * time.Second
	}
	if cfg.ExcludedKinds != nil {
		opts.Excluded = make([]models.MediaClass, 0, len(cfg.ExcludedKinds))
		for _, k := range cfg.ExcludedKinds {
			opts.Excluded = append(opts.Excluded, models.MediaClass(k))
		}
	}
	return opts
}

// FileResolvers returns a factory for on-disk resolvers. Stickers are only
// converted when a converter command is configured, and the command stops
// being run once it fails ConvertMaxFailures times in a row.
func FileResolvers(cfg models.MediaConfig, logger *logrus.Logger) ResolverFactory {
	var converter media.Converter
	if cfg.StickerConverter != "" {
		cmd := media.NewCommandConverter(cfg.StickerConverter, cfg.StickerConverterArgs,
			time.Duration(cfg.ConvertTimeoutSec)*time.Second)
		converter = media.NewGuardedConverter(cmd, circuitbreaker.New(circuitbreaker.Settings{
			Name:        "sticker_converter",
			MaxFailures: uint32(max(cfg.ConvertMaxFailures, 0)),
			Cooldown:    time.Duration(cfg.ConvertCooldownSec) * time.Second,
		}, logger))
	}
	return func(dir string) media.Resolver {
		return media.NewFileResolver(dir, converter)
	}
}

// Metrics returns the registry the converter records into.
func (c *Converter) Metrics() *metrics.Registry {
	return c.metrics
}

// Convert processes the export in dir and writes the posts file into it.
// On any fatal error nothing is written.
func (c *Converter) Convert(ctx context.Context, dir string) (*Result, error) {
	runID := tracing.GetRunID(ctx)
	if runID == "" {
		runID = tracing.NewRunID()
		ctx = tracing.WithRunID(ctx, runID)
	}
	start := time.Now()
	ctx = tracing.WithStartTime(ctx, start)

	ctx, span := tracing.StartSpan(ctx, "convert",
		attribute.String("tgblog.run_id", runID),
		attribute.String("tgblog.export_dir", dir),
	)
	defer span.End()

	logger := c.logger.WithFields(logrus.Fields{
		constants.LogFieldRunID:     runID,
		constants.LogFieldComponent: "pipeline",
	})
	logger.WithField(constants.LogFieldFilePath, dir).Info("Conversion started")

	result := &Result{
		RunID:      runID,
		OutputPath: filepath.Join(dir, c.output.PostsFile),
	}

	var exp *export.Export
	err := c.stage(ctx, logger, StageRead, func(ctx context.Context) error {
		reader := export.NewReader(c.resolvers(dir), c.logger)
		var err error
		exp, err = reader.ReadExport(ctx, dir)
		return err
	})
	if err != nil {
		return nil, c.fail(ctx, runID, err)
	}
	result.Messages = len(exp.Messages)
	result.Export = exp.Stats

	err = c.stage(ctx, logger, StageGroup, func(ctx context.Context) error {
		result.Groups = grouping.Infer(exp.Messages, c.grouping)
		return nil
	})
	if err != nil {
		return nil, c.fail(ctx, runID, err)
	}

	err = c.stage(ctx, logger, StageAssemble, func(ctx context.Context) error {
		result.Posts, result.Assembly = c.assembler.Assemble(assemble.NewIndex(exp.Messages))
		return nil
	})
	if err != nil {
		return nil, c.fail(ctx, runID, err)
	}

	err = c.stage(ctx, logger, StageWrite, func(ctx context.Context) error {
		return WritePosts(result.OutputPath, result.Posts, c.output.Indent)
	})
	if err != nil {
		return nil, c.fail(ctx, runID, err)
	}

	if c.archive != nil {
		err = c.stage(ctx, logger, StageArchive, func(ctx context.Context) error {
			return c.archive.ReplacePosts(ctx, runID, result.Posts)
		})
		if err != nil {
			return nil, c.fail(ctx, runID, err)
		}
	}

	result.Duration = time.Since(start)
	c.record(result)
	tracing.AddSpanAttributes(ctx,
		attribute.Int("tgblog.messages", result.Messages),
		attribute.Int("tgblog.groups", result.Groups),
		attribute.Int("tgblog.posts", len(result.Posts)),
	)

	logger.WithFields(logrus.Fields{
		constants.LogFieldMessages: result.Messages,
		constants.LogFieldGroups:   result.Groups,
		constants.LogFieldPosts:    len(result.Posts),
		"service_messages":         result.Export.Service,
		"media_items":              result.Export.MediaItems,
		"media_failures":           result.Export.MediaFailures,
		"media_size":               humanize.Bytes(uint64(max(result.Export.MediaBytes, 0))),
		"dangling_replies":         result.Assembly.DanglingReplies,
		constants.LogFieldDuration: result.Duration.Milliseconds(),
		constants.LogFieldFilePath: result.OutputPath,
	}).Info("Conversion finished")

	return result, nil
}

// stage runs fn inside its own span and timer.
func (c *Converter) stage(ctx context.Context, logger *logrus.Entry, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := tracing.StartSpan(ctx, "convert."+name, attribute.String("tgblog.stage", name))
	defer span.End()

	stop := c.metrics.Time(metrics.StageDuration, map[string]string{"stage": name})
	err := fn(ctx)
	elapsed := stop()

	entry := logger.WithFields(logrus.Fields{
		constants.LogFieldStage:    name,
		constants.LogFieldDuration: elapsed.Milliseconds(),
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		entry.Debug("Stage failed")
		return err
	}
	entry.Debug("Stage finished")
	return nil
}

func (c *Converter) fail(ctx context.Context, runID string, err error) error {
	tracing.RecordError(ctx, err)
	errors.FromLogrus(c.logger).LogError(err, "Conversion failed", logrus.Fields{
		constants.LogFieldRunID: runID,
	})
	return fmt.Errorf("conversion aborted: %w", err)
}

func (c *Converter) record(r *Result) {
	c.metrics.AddToCounter(metrics.MessagesRead, float64(r.Messages), nil, "Messages read from the export")
	c.metrics.AddToCounter(metrics.GroupsInferred, float64(r.Groups), nil, "Media groups inferred")
	c.metrics.AddToCounter(metrics.PostsWritten, float64(len(r.Posts)), nil, "Posts written")
	c.metrics.AddToCounter(metrics.MediaFailures, float64(r.Export.MediaFailures), nil, "Media references that could not be resolved")
	c.metrics.AddToCounter(metrics.DanglingReplies, float64(r.Assembly.DanglingReplies), nil, "Replies whose target is missing")
	c.metrics.SetGauge(metrics.MediaBytes, float64(r.Export.MediaBytes), nil, "Total size of resolved media")
}
