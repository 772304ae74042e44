package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"github.com/jhalttu/talkscan/config"
	"github.com/jhalttu/talkscan/inference"
	"github.com/jhalttu/talkscan/report"
	"github.com/jhalttu/talkscan/store"
	"github.com/jhalttu/talkscan/types"
	"github.com/jhalttu/talkscan/ui"
	"github.com/jhalttu/talkscan/utils"
	"github.com/jhalttu/talkscan/video"
)

type ScanCmd struct {
	Video     string   `arg:"" name:"video" help:"Video file or http(s) URL to analyze"`
	Start     *float64 `help:"Analyze from this time (seconds)"`
	End       *float64 `help:"Analyze up to this time (seconds)"`
	Output    string   `short:"o" help:"Write the JSON report to this file instead of stdout" type:"path"`
	Backend   string   `help:"Inference backend (local or remote), overrides config"`
	Threshold *float64 `help:"Speaking-confidence threshold override"`
	DB        string   `name:"db" help:"Also persist the report to this PostgreSQL database"`
}

func (cmd *ScanCmd) Run(appCtx *types.AppContext) error {
	cfg := cmd.applyOverrides(appCtx.Config)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", report.ErrInput, err)
	}

	win := video.Window{Start: cmd.Start, End: cmd.End}
	if err := win.Validate(); err != nil {
		return fmt.Errorf("%w: %v", report.ErrInput, err)
	}
	if !video.IsURL(cmd.Video) && !video.IsVideoFile(cmd.Video) {
		return fmt.Errorf("%w: %s is not a video file", report.ErrInput, cmd.Video)
	}

	pythonBin := ""
	if cfg.Backend == config.BackendLocal {
		pythonBin = cfg.Local.Python
	}
	if err := utils.ValidateDependencies(pythonBin); err != nil {
		return err
	}

	runID := uuid.New()
	log := appCtx.Log.WithFields(logrus.Fields{"run_id": runID, "video": cmd.Video})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Remote inputs are fetched to a temp file first; everything downstream
	// works on local paths.
	videoPath := cmd.Video
	if video.IsURL(cmd.Video) {
		fmt.Fprintln(os.Stderr, ui.InfoStyle.Render(fmt.Sprintf("⬇️  Downloading %s", cmd.Video)))
		tmp, err := video.Download(ctx, cmd.Video)
		if err != nil {
			return fmt.Errorf("%w: %v", report.ErrInput, err)
		}
		defer os.Remove(tmp)
		videoPath = tmp
	}

	src, err := video.Open(ctx, videoPath, win)
	if err != nil {
		return fmt.Errorf("%w: %v", report.ErrInput, err)
	}
	defer src.Close()

	engine, err := newEngine(cfg, appCtx.Log)
	if err != nil {
		return err
	}
	defer engine.Close()

	meta := src.Metadata()
	log.WithFields(logrus.Fields{
		"backend":      cfg.Backend,
		"total_frames": meta.TotalFrames,
		"codec":        meta.Codec,
	}).Info("scan started")

	// With a window the number of frames to come is unknown, so fall back to
	// a spinner.
	barTotal := meta.TotalFrames
	if !win.IsZero() {
		barTotal = -1
	}
	bar := progressbar.NewOptions(barTotal,
		progressbar.OptionSetDescription("🔎 Analyzing speakers"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	rep, err := report.Build(ctx, src, engine, report.Options{
		Threshold: cfg.Threshold,
		BatchSize: cfg.BatchSize,
		OnFrame:   func(int) { bar.Add(1) },
	})
	bar.Finish()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		log.WithError(err).Error("scan failed")
		return err
	}
	// The report names the input as the user gave it, not the temp file a URL
	// was fetched to.
	rep.VideoInfo.Path = cmd.Video
	log.WithField("frames", len(rep.Frames)).Info("scan finished")

	if cmd.Output == "" {
		if err := rep.WriteJSON(os.Stdout); err != nil {
			return err
		}
	} else {
		if err := rep.WriteFile(cmd.Output); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s\n", ui.SuccessStyle.Render(fmt.Sprintf("✅ Report written to %s", cmd.Output)))
	}

	if cmd.DB != "" {
		db, err := store.New(ctx, cmd.DB)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close(context.Background())

		if err := db.SaveReport(ctx, runID, rep, win); err != nil {
			return fmt.Errorf("persist report: %w", err)
		}
		log.Info("report persisted to database")
	}
	return nil
}

// applyOverrides layers flag values over the loaded configuration.
func (cmd *ScanCmd) applyOverrides(base *config.Config) *config.Config {
	cfg := *base
	if cmd.Backend != "" {
		cfg.Backend = cmd.Backend
	}
	if cmd.Threshold != nil {
		cfg.Threshold = *cmd.Threshold
	}
	return &cfg
}

// newEngine constructs the inference backend the configuration selects. The
// report builder never sees which variant it got.
func newEngine(cfg *config.Config, log *logrus.Logger) (inference.Engine, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		return inference.NewLocalEngine(cfg.Local.Python, cfg.Local.Worker, log)
	case config.BackendRemote:
		return inference.NewRemoteEngine(cfg.Remote.URL, time.Duration(cfg.Remote.TimeoutSeconds)*time.Second), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
