package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"compressure/internal/config"
	"compressure/internal/ffmpeg"
	"compressure/internal/journal"
	"compressure/internal/logging"
	"compressure/internal/manifest"
	"compressure/internal/metrics"
	"compressure/internal/pipeline"
	"compressure/internal/preflight"
	"compressure/internal/services"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	jsonFlag     *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		jsonFlag:     jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "load", resolved, err)
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			if _, err := logging.ParseLevel(*c.logLevelFlag); err != nil {
				c.configErr = services.Wrap(services.ErrConfiguration, "config", "log level", "", err)
				return
			}
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "ensure directories", "", err)
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configSeen = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// session is everything a pipeline command needs for one invocation.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	manifest *manifest.Manifest
	journal  *journal.Journal
	metrics  *metrics.Recorder
	pipeline *pipeline.Pipeline
	ctx      context.Context
}

// openSession loads config, verifies the environment, and opens the manifest
// and journal. close must be called when the command finishes.
func (c *commandContext) openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if failed := preflight.Failed(preflight.RunAll(cfg)); len(failed) > 0 {
		parts := make([]string, 0, len(failed))
		for _, result := range failed {
			parts = append(parts, fmt.Sprintf("%s: %s", result.Name, result.Detail))
		}
		return nil, services.Wrap(services.ErrConfiguration, "preflight", "check",
			strings.Join(parts, "; "), nil)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "logging", "init", "", err)
	}

	m, err := manifest.Open(cfg.Paths.ManifestPath, manifest.Options{Logger: logger})
	if err != nil {
		return nil, err
	}
	j, err := journal.Open(cfg.Paths.JournalPath)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	recorder := metrics.New()

	p, err := pipeline.New(cfg, m, ffmpeg.NewExecRunner(logger),
		pipeline.WithJournal(j),
		pipeline.WithMetrics(recorder),
		pipeline.WithLogger(logger),
	)
	if err != nil {
		_ = j.Close()
		_ = m.Close()
		return nil, err
	}

	runCtx := services.WithRunID(cmd.Context(), uuid.NewString())
	return &session{
		cfg:      cfg,
		logger:   logger,
		manifest: m,
		journal:  j,
		metrics:  recorder,
		pipeline: p,
		ctx:      runCtx,
	}, nil
}

func (s *session) close() {
	if err := s.metrics.WriteTextfile(s.cfg.Metrics.Textfile); err != nil {
		logging.WarnWithContext(s.logger, "metrics export failed", "metrics_export_failed",
			logging.String("path", s.cfg.Metrics.Textfile),
			logging.String(logging.FieldImpact, "metrics for this run are not exported"),
			logging.Error(err),
		)
	}
	_ = s.journal.Close()
	_ = s.manifest.Close()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
