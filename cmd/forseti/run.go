package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"forseti-hq/forseti/pkg/audit"
	"forseti-hq/forseti/pkg/audit/recorder"
	"forseti-hq/forseti/pkg/audit/retention"
	"forseti-hq/forseti/pkg/audit/storage"
	"forseti-hq/forseti/pkg/cli"
	"forseti-hq/forseti/pkg/config"
	"forseti-hq/forseti/pkg/engine"
	"forseti-hq/forseti/pkg/facts"
	"forseti-hq/forseti/pkg/rules"
	"forseti-hq/forseti/pkg/rules/source"
	"forseti-hq/forseti/pkg/telemetry/metrics"
)

var runFlags struct {
	rulesPath  string
	factsFile  string
	format     string
	cycleLimit int
	logLevel   string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate facts against the active rule set",
	Long: `Evaluate one or more fact batches against the configured rule set.

With --facts, the named file is loaded as a single batch and evaluated in
one session. Without --facts, stdin is read as a stream of YAML documents,
one batch per document, each evaluated in its own session; in stream mode
the rule watcher and metrics endpoint are started if configured.

A facts file is a list of typed field maps:

  facts:
    - type: transaction
      fields:
        amount: 12500
        country: CN

Examples:
  # One-shot evaluation
  forseti run --rules rules/ --facts facts.yaml

  # Stream batches, full trace in the output
  cat batches.yaml | forseti run --rules rules/ --format json -v`,
	RunE: runSessions,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.rulesPath, "rules", "r", "", "rule file or directory (overrides config)")
	runCmd.Flags().StringVarP(&runFlags.factsFile, "facts", "f", "", "facts file; omit to stream batches from stdin")
	runCmd.Flags().StringVar(&runFlags.format, "format", "text", "output format: text, json")
	runCmd.Flags().IntVar(&runFlags.cycleLimit, "cycle-limit", 0, "override rule firing limit per session")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

// factDocument is the shape of a facts file or one stdin stream document.
type factDocument struct {
	Facts []factEntry `yaml:"facts"`
}

type factEntry struct {
	Type   string         `yaml:"type"`
	Fields map[string]any `yaml:"fields"`
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := loadCLIConfig()
	if err != nil {
		return err
	}
	if runFlags.cycleLimit > 0 {
		cfg.Engine.CycleLimit = runFlags.cycleLimit
	}

	logger := newLogger(&cfg.Logging)
	slog.SetDefault(logger)

	schema := rules.Schema{FactTypes: cfg.Rules.Schema.FactTypes}
	mgr, err := source.NewManager(source.NewFileSource(cfg.Rules.Path, logger), schema, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Printf("✓ Rules loaded (%d rules, version %s)\n", mgr.Current().Len(), mgr.Version())

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Metrics, nil)
		mgr.SetOnReload(collector.ObserveReload)
	}

	auditRecorder, auditStorage, err := newAuditRecorder(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	if auditRecorder != nil {
		defer auditRecorder.Close()
		defer auditStorage.Close()
	}

	ctx := cli.SetupSignalHandler()
	formatter := cli.NewFormatter(cli.OutputFormat(runFlags.format))

	if runFlags.factsFile != "" {
		batch, err := loadFactsFile(runFlags.factsFile)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		return evaluateBatch(ctx, cfg, mgr, collector, auditRecorder, formatter, batch)
	}

	return streamBatches(ctx, cfg, mgr, collector, auditRecorder, auditStorage, formatter)
}

// streamBatches evaluates stdin YAML documents until EOF or shutdown. Long
// lived concerns (rule watcher, metrics endpoint, retention scheduler) run
// only in this mode.
func streamBatches(ctx context.Context, cfg *config.Config, mgr *source.Manager,
	collector *metrics.Collector, auditRecorder *recorder.Recorder,
	auditStorage audit.Storage, formatter cli.Formatter) error {

	if cfg.Rules.Watch {
		go func() {
			if err := mgr.Watch(ctx); err != nil {
				slog.Error("rule watcher stopped", "error", err)
			}
		}()
	}

	if collector != nil && cfg.Metrics.ListenAddress != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, collector.Handler())
		srv := &http.Server{Addr: cfg.Metrics.ListenAddress, Handler: mux}
		go func() {
			slog.Info("metrics endpoint listening", "address", cfg.Metrics.ListenAddress)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics endpoint error", "error", err)
			}
		}()
		defer srv.Close()
	}

	if auditStorage != nil && cfg.Audit.RetentionDays > 0 && cfg.Audit.RetentionSchedule != "" {
		pruner := retention.NewPruner(auditStorage, &retention.Config{
			RetentionDays: cfg.Audit.RetentionDays,
			PruneSchedule: cfg.Audit.RetentionSchedule,
		})
		if err := pruner.Scheduler().Start(ctx); err != nil {
			slog.Warn("failed to start retention scheduler", "error", err)
		} else {
			defer pruner.Scheduler().Stop()
		}
	}

	decoder := yaml.NewDecoder(os.Stdin)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		var doc factDocument
		if err := decoder.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return cli.NewCommandError("run", fmt.Errorf("failed to decode fact batch: %w", err))
		}

		if err := evaluateBatch(ctx, cfg, mgr, collector, auditRecorder, formatter, doc.Facts); err != nil {
			return err
		}
	}
}

// evaluateBatch runs one batch in a fresh session against the rule set
// active at call time and prints the decision.
func evaluateBatch(ctx context.Context, cfg *config.Config, mgr *source.Manager,
	collector *metrics.Collector, auditRecorder *recorder.Recorder,
	formatter cli.Formatter, batch []factEntry) error {

	if len(batch) == 0 {
		return cli.NewCommandError("run", fmt.Errorf("fact batch is empty"))
	}

	sess, err := engine.NewSession(mgr.Current(),
		engine.WithCycleLimit(cfg.Engine.CycleLimit),
		engine.WithLogger(slog.Default()),
	)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	for i, entry := range batch {
		if entry.Type == "" {
			return cli.NewCommandError("run", fmt.Errorf("fact %d has no type", i))
		}
		if _, err := sess.Insert(facts.NewGeneric(entry.Type, entry.Fields)); err != nil {
			return cli.NewCommandError("run", err)
		}
	}

	res, err := sess.Run(ctx)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	if collector != nil {
		collector.ObserveSession(res)
	}
	if auditRecorder != nil {
		if err := auditRecorder.Record(ctx, res); err != nil {
			slog.Warn("audit record not written", "session_id", res.SessionID, "error", err)
		}
	}

	return printResult(formatter, res)
}

// sessionOutput is the printable shape of a session result.
type sessionOutput struct {
	SessionID      string       `json:"session_id"`
	RuleSetVersion string       `json:"rule_set_version"`
	State          string       `json:"state"`
	Cycles         int          `json:"cycles"`
	Duration       string       `json:"duration"`
	Tags           []string     `json:"tags,omitempty"`
	Reasons        []string     `json:"reasons,omitempty"`
	Facts          []factOutput `json:"facts"`
	Trace          []traceLine  `json:"trace,omitempty"`
}

type factOutput struct {
	Handle  string         `json:"handle"`
	Type    string         `json:"type"`
	Version int            `json:"version"`
	Fields  map[string]any `json:"fields,omitempty"`
}

type traceLine struct {
	Cycle       int    `json:"cycle"`
	Rule        string `json:"rule"`
	Explanation string `json:"explanation,omitempty"`
	Skipped     bool   `json:"skipped,omitempty"`
	Error       string `json:"error,omitempty"`
}

func buildOutput(res *engine.Result) *sessionOutput {
	out := &sessionOutput{
		SessionID:      res.SessionID,
		RuleSetVersion: res.RuleSetVersion,
		State:          res.TerminalState.String(),
		Cycles:         res.Cycles,
		Duration:       res.Duration.String(),
		Tags:           rules.Tags(res.FinalFacts),
		Reasons:        res.Explanations(),
	}
	for _, snap := range res.FinalFacts {
		fo := factOutput{
			Handle:  snap.Handle.String(),
			Type:    snap.Type(),
			Version: snap.Version,
		}
		if gen, ok := snap.Value.(facts.Generic); ok {
			fo.Fields = gen.Fields
		}
		out.Facts = append(out.Facts, fo)
	}
	for _, e := range res.Trace {
		out.Trace = append(out.Trace, traceLine{
			Cycle:       e.Cycle,
			Rule:        e.Rule,
			Explanation: e.Explanation,
			Skipped:     e.Skipped,
			Error:       e.Error,
		})
	}
	return out
}

func printResult(formatter cli.Formatter, res *engine.Result) error {
	out := buildOutput(res)

	if _, ok := formatter.(*cli.JSONFormatter); ok {
		return formatter.FormatTo(os.Stdout, out)
	}

	fmt.Printf("session %s: %s in %d cycles (%s)\n", out.SessionID, out.State, out.Cycles, out.Duration)
	if len(out.Tags) > 0 {
		fmt.Printf("  tags: %s\n", strings.Join(out.Tags, ", "))
	}
	if len(out.Reasons) > 0 {
		fmt.Println("  reasons:")
		for _, r := range out.Reasons {
			fmt.Printf("    - %s\n", r)
		}
	}
	if verbose {
		fmt.Println("  trace:")
		for i, t := range out.Trace {
			line := fmt.Sprintf("    %d. %s (cycle %d)", i+1, t.Rule, t.Cycle)
			if t.Skipped {
				line += " [skipped: " + t.Error + "]"
			}
			fmt.Println(line)
		}
		fmt.Println("  facts:")
		for _, f := range out.Facts {
			fmt.Printf("    %s %s v%d %v\n", f.Handle, f.Type, f.Version, f.Fields)
		}
	}
	return nil
}

// loadCLIConfig loads the config file when one was given and falls back to
// defaults otherwise, then applies flag overrides shared by commands.
func loadCLIConfig() (*config.Config, error) {
	var cfg *config.Config
	if cfgFile != "" {
		loaded, err := config.LoadConfigWithEnvOverrides(cfgFile)
		if err != nil {
			return nil, cli.NewConfigError("", err.Error())
		}
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
	}

	if runFlags.rulesPath != "" {
		cfg.Rules.Path = runFlags.rulesPath
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if verbose && cfg.Logging.Level != "debug" {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// newAuditRecorder builds the configured audit pipeline. Both returns are
// nil when auditing is disabled.
func newAuditRecorder(cfg *config.Config) (*recorder.Recorder, audit.Storage, error) {
	if !cfg.Audit.Enabled {
		return nil, nil, nil
	}

	var auditStorage audit.Storage
	switch cfg.Audit.Backend {
	case "sqlite":
		sqliteCfg := storage.DefaultSQLiteConfig()
		sqliteCfg.Path = cfg.Audit.SQLitePath
		s, err := storage.NewSQLiteStorage(sqliteCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open audit storage: %w", err)
		}
		auditStorage = s
	case "memory":
		auditStorage = storage.NewMemoryStorage()
	default:
		return nil, nil, fmt.Errorf("unsupported audit backend: %s", cfg.Audit.Backend)
	}

	rec := recorder.NewRecorder(auditStorage, &recorder.Config{
		Enabled:      true,
		AsyncBuffer:  cfg.Audit.AsyncBuffer,
		WriteTimeout: cfg.Audit.WriteTimeout,
	})
	return rec, auditStorage, nil
}

func loadFactsFile(path string) ([]factEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read facts file: %w", err)
	}

	var doc factDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse facts file %s: %w", path, err)
	}
	if len(doc.Facts) == 0 {
		return nil, fmt.Errorf("facts file %s contains no facts", path)
	}
	return doc.Facts, nil
}
