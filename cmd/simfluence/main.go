package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"

	"simfluence/internal/analytics"
	"simfluence/internal/api"
	"simfluence/internal/cmdlog"
	"simfluence/internal/config"
	"simfluence/internal/logging"
	"simfluence/internal/model"
	"simfluence/internal/modelstore"
	"simfluence/internal/predict"
	"simfluence/internal/schedule"
	"simfluence/internal/store/sqlitevec"
	"simfluence/internal/theme"
	"simfluence/internal/train"
)

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	var err error
	switch cmd {
	case "init":
		err = cmdInit()
	case "train":
		err = cmdlog.Run("train", cmdTrain)
	case "serve":
		err = cmdlog.Run("serve", cmdServe)
	case "predict":
		err = cmdlog.Run("predict", cmdPredict)
	case "runs":
		err = cmdlog.Run("runs", cmdRuns)
	case "predictions":
		err = cmdlog.Run("predictions", cmdPredictions)
	default:
		printHelp()
		return
	}
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func printHelp() {
	theme.PrintBanner()
	fmt.Println("Usage: simfluence <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init        Create a config file at ./simfluence.yaml")
	fmt.Println("  train       Fit the likes, comments and shares models")
	fmt.Println("  serve       Run the prediction HTTP API")
	fmt.Println("  predict     Predict engagement for one post")
	fmt.Println("  runs        List recent training runs")
	fmt.Println("  predictions List logged predictions")
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return cfg, nil
}

// openLedger returns nil when storage is disabled.
func openLedger(cfg config.Config) (*sqlitevec.DB, error) {
	if cfg.Storage.DBPath == "" {
		return nil, nil
	}
	return sqlitevec.Open(cfg.Storage.DBPath)
}

func cmdInit() error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", "./simfluence.yaml", "path to write config")
	_ = fs.Parse(os.Args[2:])
	if err := config.Save(*path, config.Default()); err != nil {
		return err
	}
	abs, _ := filepath.Abs(*path)
	theme.PrintBanner()
	fmt.Println("Config written to:", abs)
	return nil
}

func cmdTrain() error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	cfgPath := fs.String("config", "./simfluence.yaml", "config path")
	primary := fs.String("primary", "", "primary dataset CSV (overrides config)")
	aux := fs.String("aux", "", "auxiliary comment corpus CSV (overrides config)")
	out := fs.String("out", "", "model output directory (overrides config)")
	_ = fs.Parse(os.Args[2:])
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	opts := train.OptionsFromConfig(cfg)
	if *primary != "" {
		opts.PrimaryPath = *primary
	}
	if *aux != "" {
		opts.AuxPath = *aux
	}
	if *out != "" {
		opts.OutDir = *out
	}

	db, err := openLedger(cfg)
	if err != nil {
		return err
	}
	var ledger train.RunRecorder
	if db != nil {
		defer db.Close()
		ledger = db
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	res, err := train.New(opts, ledger).Run(ctx)
	if err != nil {
		return err
	}
	theme.PrintBanner()
	train.PrintSummary(os.Stdout, res)
	return nil
}

func cmdServe() error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "./simfluence.yaml", "config path")
	addr := fs.String("addr", "", "listen address (overrides config)")
	_ = fs.Parse(os.Args[2:])
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	store := modelstore.New(cfg.Models.Dir, cfg.Models.Reload)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// Serving starts without models; requests fail until training has run.
	if _, err := store.Load(ctx); err != nil {
		logging.Warn("models_not_loaded", map[string]any{"dir": cfg.Models.Dir, "error": err.Error()})
	}

	db, err := openLedger(cfg)
	if err != nil {
		return err
	}
	var rec predict.Recorder
	if db != nil {
		defer db.Close()
		rec = db
	}
	srv := api.NewServer(predict.NewService(store, rec), store, cfg.Server)
	return api.Serve(ctx, cfg.Server, srv.Routes())
}

func cmdPredict() error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	cfgPath := fs.String("config", "./simfluence.yaml", "config path")
	text := fs.String("text", "", "post text, scored with the default user profile")
	input := fs.String("input", "", "JSON file holding one post record")
	hour := fs.Int("hour", -1, "posting hour 0-23; overrides the time-of-day slot")
	_ = fs.Parse(os.Args[2:])
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}

	var rec model.PostRecord
	switch {
	case *input != "":
		if rec, err = readRecord(*input); err != nil {
			return err
		}
	case *text != "":
		rec = model.FromText(*text, model.DefaultUser())
	default:
		return errors.New("one of -text or -input is required")
	}
	if *hour >= 0 && *hour < 24 {
		rec.PostTimeOfDay = model.Category(schedule.SlotForHour(*hour))
	}

	svc := predict.NewService(modelstore.New(cfg.Models.Dir, modelstore.ReloadAlways), nil)
	p, err := svc.PredictEngagement(context.Background(), rec)
	if err != nil {
		return err
	}
	fmt.Printf("Predicted likes:    %d\n", p.Likes)
	fmt.Printf("Predicted comments: %d\n", p.Comments)
	fmt.Printf("Predicted shares:   %d\n", p.Shares)
	fmt.Printf("Engagement score:   %d (%s)\n", analytics.Score(p.Likes, p.Comments, p.Shares), analytics.Category(p.Likes))
	fmt.Println("Model:", p.ModelInfo)
	return nil
}

// readRecord decodes and validates one post record the way the API does.
func readRecord(path string) (model.PostRecord, error) {
	var rec model.PostRecord
	b, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(b, &rec); err != nil {
		return rec, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := rec.Validate(); err != nil {
		return rec, fmt.Errorf("%s: %s", path, model.ValidationMessage(err))
	}
	return rec, nil
}

func cmdRuns() error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	cfgPath := fs.String("config", "./simfluence.yaml", "config path")
	limit := fs.Int("limit", 10, "number of runs to list")
	_ = fs.Parse(os.Args[2:])
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	db, err := openLedger(cfg)
	if err != nil {
		return err
	}
	if db == nil {
		return errors.New("storage.dbPath is empty; no run ledger")
	}
	defer db.Close()
	runs, err := db.RecentRuns(context.Background(), *limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFINISHED\tPROVENANCE\tROWS\tFEATURES\tLIKES R2\tCOMMENTS R2\tSHARES R2")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.3f\t%.3f\t%.3f\n",
			shortID(r.ID), r.FinishedAt.Local().Format(time.DateTime), r.Provenance, r.Rows, r.Features,
			r.Metrics[modelstore.TargetLikes].R2, r.Metrics[modelstore.TargetComments].R2, r.Metrics[modelstore.TargetShares].R2)
	}
	return tw.Flush()
}

func cmdPredictions() error {
	fs := flag.NewFlagSet("predictions", flag.ExitOnError)
	cfgPath := fs.String("config", "./simfluence.yaml", "config path")
	since := fs.Duration("since", 24*time.Hour, "how far back to list")
	_ = fs.Parse(os.Args[2:])
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	db, err := openLedger(cfg)
	if err != nil {
		return err
	}
	if db == nil {
		return errors.New("storage.dbPath is empty; no prediction ledger")
	}
	defer db.Close()
	now := time.Now().UTC()
	// the range end is exclusive at second resolution
	ps, err := db.LoadPredictionsRange(context.Background(), now.Add(-*since), now.Add(time.Second))
	if err != nil {
		return err
	}
	return printPredictions(os.Stdout, ps)
}

func printPredictions(w io.Writer, ps []sqlitevec.StoredPrediction) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tREQUEST\tLIKES\tCOMMENTS\tSHARES\tSCORE\tFEATURES")
	for _, p := range ps {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			p.TS.Local().Format(time.DateTime), shortID(p.RequestID), p.Likes, p.Comments, p.Shares,
			analytics.Score(p.Likes, p.Comments, p.Shares), len(p.Vector))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d predictions\n", len(ps))
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
