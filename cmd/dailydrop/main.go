// CLAUDE:SUMMARY Entry point: one-shot crossword drop (flags) or daemon mode with the daily scheduler and admin API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/pflag"

	"github.com/hazyhaar/dailydrop/civildate"
	"github.com/hazyhaar/dailydrop/crossword"
	"github.com/hazyhaar/dailydrop/dbopen"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		dryRun     bool
		dateFlag   string
		puzzleID   string
		daemon     bool
		configPath string
	)
	flagSet := pflag.NewFlagSet("dailydrop", pflag.ContinueOnError)
	flagSet.BoolVar(&dryRun, "dry-run", false, "download and check the PDF, skip the upload")
	flagSet.StringVar(&dateFlag, "date", "", "puzzle date YYYY-MM-DD (default: tomorrow in the reference zone)")
	flagSet.StringVar(&puzzleID, "puzzle-id", "", "skip the metadata lookup and fetch this puzzle id")
	flagSet.BoolVar(&daemon, "daemon", false, "run daily at scheduler.at and serve the admin API")
	flagSet.StringVar(&configPath, "config", "", "YAML configuration file")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}

	if err := checkFlags(daemon, dateFlag, puzzleID); err != nil {
		fmt.Fprintf(os.Stderr, "dailydrop: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(os.Getenv("LOG_LEVEL"))}))
	slog.SetDefault(logger)

	cfg := crossword.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = crossword.LoadConfig(configPath); err != nil {
			slog.Error("config", "error", err)
			return 1
		}
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var opts []crossword.Option
	if cfg.JournalDB != "" {
		db, err := dbopen.Open(cfg.JournalDB, dbopen.WithMkdirAll())
		if err != nil {
			slog.Error("journal db", "path", cfg.JournalDB, "error", err)
			return 1
		}
		defer db.Close()
		opts = append(opts, crossword.WithJournal(db))
	}

	svc, err := crossword.New(ctx, cfg, logger, opts...)
	if err != nil {
		slog.Error("crossword service", "error", err)
		return 1
	}

	if daemon {
		return serve(ctx, svc, cfg.AdminAddr, dryRun)
	}

	date := svc.Tomorrow()
	if dateFlag != "" {
		if date, err = civildate.Parse(dateFlag); err != nil {
			slog.Error("invalid --date", "error", err)
			return 1
		}
	}

	// Run failures are reported in the logs only.
	if puzzleID != "" {
		svc.Transfer(ctx, crossword.PuzzleID(puzzleID), date, dryRun)
	} else {
		svc.Run(ctx, date, dryRun)
	}
	return 0
}

// checkFlags rejects flag combinations the daemon would otherwise ignore.
func checkFlags(daemon bool, date, puzzleID string) error {
	if !daemon {
		return nil
	}
	if date != "" {
		return errors.New("--date cannot be combined with --daemon")
	}
	if puzzleID != "" {
		return errors.New("--puzzle-id cannot be combined with --daemon")
	}
	return nil
}

func serve(ctx context.Context, svc *crossword.Service, addr string, dryRun bool) int {
	sched, err := svc.NewScheduler(dryRun)
	if err != nil {
		slog.Error("scheduler", "error", err)
		return 1
	}

	var srv *http.Server
	if addr != "" {
		srv = &http.Server{
			Addr:              addr,
			Handler:           svc.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      5 * time.Minute,
			IdleTimeout:       60 * time.Second,
		}
		go func() {
			slog.Info("admin server starting", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("admin server", "error", err)
			}
		}()
	}

	if dryRun {
		slog.Warn("daemon in dry-run mode, scheduled runs skip the upload")
	}
	sched.Run(ctx)
	slog.Info("shutting down")

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown", "error", err)
		}
	}
	return 0
}

func logLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		if s != "" {
			fmt.Fprintf(os.Stderr, "dailydrop: unknown LOG_LEVEL %q, using info\n", s)
		}
		return slog.LevelInfo
	}
	return lvl
}
