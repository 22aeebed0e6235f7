package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pavelanni/quizgrader/internal/gradebook"
	appI18n "github.com/pavelanni/quizgrader/internal/i18n"
	"github.com/pavelanni/quizgrader/internal/model"
	"github.com/pavelanni/quizgrader/internal/normalize"
	"github.com/pavelanni/quizgrader/internal/pipeline"
	"github.com/pavelanni/quizgrader/internal/prompt"
	"github.com/pavelanni/quizgrader/internal/report"
	"github.com/pavelanni/quizgrader/internal/score"
	"github.com/pavelanni/quizgrader/internal/sheet"
	"github.com/pavelanni/quizgrader/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "quizgrader",
		Short: "Grade exported quiz responses and merge them into a gradebook",
	}

	run := runCmd()
	root.AddCommand(run, normalizeCmd(), scoreCmd(), mergeCmd(), historyCmd(), serveCmd())

	// Make "run" the default when no subcommand is given.
	root.RunE = run.RunE
	root.Flags().AddFlagSet(run.Flags())

	return root
}

func commonFlags(f *pflag.FlagSet) {
	f.String("db", "quizgrader.db", "SQLite database path for run history")
	f.StringP("lang", "l", "zh-TW", "UI language (zh-TW, en)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func layoutFlags(f *pflag.FlagSet) {
	def := model.DefaultConfig()
	f.String("answer-marker", def.Normalize.AnswerMarker, "Substring marking answer column headers")
	f.String("timestamp-column", def.Score.TimestampColumn, "Submission timestamp column")
	f.String("id-column", def.Score.IDColumn, "Student identifier column")
	f.String("key-sentinel", def.Score.KeySentinel, "Identifier of the answer key row")
	f.String("no-answer", def.Score.NoAnswer, "Answer value meaning not answered")
	f.Bool("clamp-negative", false, "Never let late submissions score below zero")
	f.String("trailer-prefix", def.Gradebook.TrailerPrefix, "First-cell prefix of the gradebook trailer row")
	f.Int("gradebook-id-column", def.Gradebook.IDColumn, "Zero-based student identifier column in the gradebook")
	f.Bool("require-trailer", false, "Fail when the gradebook has no trailer row")
	f.Bool("backup", def.Gradebook.Backup, "Keep the previous gradebook as .bak")
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the interactive normalize, score and merge flow",
		RunE:  runInteractive,
	}
	f := cmd.Flags()
	commonFlags(f)
	layoutFlags(f)
	f.Bool("accessible", false, "Use plain line prompts instead of full-screen widgets")
	return cmd
}

func normalizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Clean a response workbook into xlsx and CSV",
		RunE:  runNormalize,
	}
	f := cmd.Flags()
	commonFlags(f)
	layoutFlags(f)
	f.StringP("input", "i", "", "Response workbook (.xlsx)")
	f.StringP("output", "o", "", "Cleaned workbook path (.xlsx); the CSV is written beside it")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a cleaned CSV into <input>_results.csv",
		RunE:  runScore,
	}
	f := cmd.Flags()
	commonFlags(f)
	layoutFlags(f)
	f.StringP("input", "i", "", "Cleaned responses CSV")
	f.IntP("time-unit", "u", 0, "Minutes per decay step")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("time-unit")
	return cmd
}

func mergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge a results CSV into a gradebook CSV",
		RunE:  runMerge,
	}
	f := cmd.Flags()
	commonFlags(f)
	layoutFlags(f)
	f.StringP("results", "r", "", "Results CSV")
	f.StringP("gradebook", "g", "", "Gradebook CSV, rewritten in place")
	f.StringP("date", "d", "", "Date label of the gradebook column to fill")
	_ = cmd.MarkFlagRequired("results")
	_ = cmd.MarkFlagRequired("gradebook")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		RunE:  runHistory,
	}
	f := cmd.Flags()
	commonFlags(f)
	f.IntP("limit", "n", 20, "Maximum number of runs to show (0 = all)")
	f.Int64("run", 0, "Print the scores of one run as JSON")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run history as JSON over HTTP",
		RunE:  runServe,
	}
	f := cmd.Flags()
	commonFlags(f)
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("QUIZGRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("quizgrader")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/quizgrader")
	v.AddConfigPath("/etc/quizgrader")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// configFromViper overlays flag, env and config file values on the defaults.
func configFromViper(v *viper.Viper) model.Config {
	cfg := model.DefaultConfig()
	cfg.Normalize.AnswerMarker = v.GetString("answer-marker")
	cfg.Normalize.TimestampColumn = v.GetString("timestamp-column")
	cfg.Score.TimestampColumn = v.GetString("timestamp-column")
	cfg.Score.IDColumn = v.GetString("id-column")
	cfg.Score.KeySentinel = v.GetString("key-sentinel")
	cfg.Score.NoAnswer = v.GetString("no-answer")
	cfg.Score.ClampNegative = v.GetBool("clamp-negative")
	cfg.Gradebook.TrailerPrefix = v.GetString("trailer-prefix")
	cfg.Gradebook.IDColumn = v.GetInt("gradebook-id-column")
	cfg.Gradebook.RequireTrailer = v.GetBool("require-trailer")
	cfg.Gradebook.Backup = v.GetBool("backup")
	return cfg
}

// setup prepares logging, configuration and translations shared by all commands.
func setup(cmd *cobra.Command) (*viper.Viper, context.Context, error) {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return nil, nil, fmt.Errorf("init i18n: %w", err)
	}
	return v, appI18n.WithLanguage(cmd.Context(), lang), nil
}

func runInteractive(cmd *cobra.Command, _ []string) error {
	v, ctx, err := setup(cmd)
	if err != nil {
		return err
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ui := newTerminal(db, v.GetBool("accessible"))
	runner := pipeline.New(sheet.New(nil), ui, configFromViper(v), db)
	run, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(run))
	return nil
}

// newTerminal starts the prompts where the previous completed run left off.
func newTerminal(db *store.Store, accessible bool) *prompt.Terminal {
	last := map[string]string{}
	for _, key := range []string{store.KeyLastDir, store.KeyLastTimeUnit, store.KeyLastDate} {
		v, err := db.GetMetadata(key)
		if err != nil {
			slog.Warn("cannot read remembered value", "key", key, "error", err)
		}
		last[key] = v
	}

	dir := last[store.KeyLastDir]
	if dir != "" {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			dir = ""
		}
	}
	unit, _ := strconv.Atoi(last[store.KeyLastTimeUnit])
	return prompt.NewTerminal(dir, accessible).WithDefaults(unit, last[store.KeyLastDate])
}

func runNormalize(cmd *cobra.Command, _ []string) error {
	v, ctx, err := setup(cmd)
	if err != nil {
		return err
	}
	ui := &prompt.Script{SaveLocations: []string{v.GetString("output")}}
	stage := &normalize.Stage{Files: sheet.New(nil), UI: ui, Cfg: configFromViper(v).Normalize}
	csvPath, err := stage.Run(ctx, v.GetString("input"))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), csvPath)
	return nil
}

func runScore(cmd *cobra.Command, _ []string) error {
	v, ctx, err := setup(cmd)
	if err != nil {
		return err
	}
	stage := &score.Stage{Files: sheet.New(nil), UI: &prompt.Script{}, Cfg: configFromViper(v).Score}
	out, rows, err := stage.Run(ctx, v.GetString("input"), v.GetInt("time-unit"))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d)\n", out, len(rows))
	return nil
}

func runMerge(cmd *cobra.Command, _ []string) error {
	v, ctx, err := setup(cmd)
	if err != nil {
		return err
	}
	cfg := configFromViper(v)
	stage := &gradebook.Stage{Files: sheet.New(nil), UI: &prompt.Script{}, ScoreCfg: cfg.Score, Cfg: cfg.Gradebook}
	scores, err := stage.LoadScores(v.GetString("results"))
	if err != nil {
		return fmt.Errorf("read scores: %w", err)
	}
	updated, err := stage.Run(ctx, scores, v.GetString("gradebook"), v.GetString("date"))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), appI18n.Tp(ctx, "StudentsUpdated", updated))
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	v, _, err := setup(cmd)
	if err != nil {
		return err
	}
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if id := v.GetInt64("run"); id > 0 {
		exp, err := db.ExportRun(id)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(exp, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	runs, err := db.ListRuns(v.GetInt("limit"))
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderHistory(runs))
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	v, _, err := setup(cmd)
	if err != nil {
		return err
	}
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	report.New(db).Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server", "addr", addr, "db", v.GetString("db"))
	return http.ListenAndServe(addr, r)
}
