package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvclean/internal/config"
	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/logging"
	"github.com/JonMunkholm/csvclean/internal/rules"
	"github.com/JonMunkholm/csvclean/internal/schema"
)

// app is the state shared by every command, filled in before any RunE.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *rules.Registry

	rulesPath string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "csvclean",
		Short:         "Clean CSV exports with declarative per-file rules",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.rulesPath, "rules", "", "rules document (.json, .yaml); defaults to RULES_PATH, then the builtin rules")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error; defaults to LOG_LEVEL")

	root.AddCommand(
		newCleanCmd(a),
		newCheckCmd(a),
		newRulesCmd(a),
		newSportsCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.Logging.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	// Logs go to stderr so stdout stays clean for summaries and dumps.
	a.logger = logging.New(cmd.ErrOrStderr(), level, cfg.Logging.Format)

	a.registry, err = rules.DefaultRegistry()
	return err
}

// loadRules returns the rules named by --rules or RULES_PATH, or the
// builtin rules when neither is set.
func (a *app) loadRules() (schema.RulesByCsv, error) {
	path := a.rulesPath
	if path == "" {
		path = a.cfg.Rules.Path
	}
	if path == "" {
		a.logger.Debug("using builtin rules", "file", schema.BuiltinFile)
		return schema.Builtin(), nil
	}
	rs, err := schema.LoadFile(path)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("rules loaded", "path", path, "files", rs.Files())
	return rs, nil
}

// runOptions resolves the mode and policy flags against the configured
// defaults. Empty flags keep the defaults.
func (a *app) runOptions(mode, policy string, workers int) (core.Options, error) {
	if mode == "" {
		mode = a.cfg.Run.Mode
	}
	if policy == "" {
		policy = a.cfg.Run.FailurePolicy
	}
	if workers == 0 {
		workers = a.cfg.Run.Workers
	}

	m, err := core.ParseMode(mode)
	if err != nil {
		return core.Options{}, err
	}
	p, err := core.ParseFailurePolicy(policy)
	if err != nil {
		return core.Options{}, err
	}
	return core.Options{
		Mode:      m,
		Policy:    p,
		Workers:   workers,
		ChunkSize: a.cfg.Run.ChunkSize,
		Registry:  a.registry,
		Logger:    a.logger,
	}, nil
}
