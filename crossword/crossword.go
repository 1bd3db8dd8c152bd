// CLAUDE:SUMMARY Drop orchestrator: resolve puzzle id -> download PDF -> check -> upload to Dropbox, journaled, one run at a time.
// Package crossword fetches the daily crossword PDF and stores it in Dropbox.
//
// A run is a straight line: resolve the puzzle id for a date, download the
// PDF, check it, upload it under "{date} ({weekday}) Crossword.pdf". The
// first failure ends the run. Nothing is retried; the next scheduled run is
// the retry.
package crossword

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/hazyhaar/dailydrop/civildate"
	"github.com/hazyhaar/dailydrop/crossword/internal/dropbox"
	"github.com/hazyhaar/dailydrop/crossword/internal/journal"
	"github.com/hazyhaar/dailydrop/crossword/internal/pdfcheck"
	"github.com/hazyhaar/dailydrop/crossword/internal/publisher"
	"github.com/hazyhaar/dailydrop/crossword/internal/scheduler"
	"github.com/hazyhaar/dailydrop/idgen"
)

// PuzzleID is the publisher's opaque identifier for one day's puzzle.
type PuzzleID = publisher.PuzzleID

// Resolver maps a date to the publisher's puzzle id.
type Resolver interface {
	ResolveID(ctx context.Context, date civildate.Date) (publisher.PuzzleID, error)
}

// Downloader fetches the PDF bytes of a puzzle.
type Downloader interface {
	Download(ctx context.Context, id publisher.PuzzleID) ([]byte, error)
}

// Uploader writes a document to storage.
type Uploader interface {
	Upload(ctx context.Context, path string, contents []byte) (*dropbox.FileMetadata, error)
}

// Result describes a finished run.
type Result struct {
	RunID       string `json:"run_id"`
	Date        string `json:"date"`
	PuzzleID    string `json:"puzzle_id,omitempty"`
	Path        string `json:"path,omitempty"`
	Bytes       int    `json:"bytes"`
	Pages       int    `json:"pages,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
	DryRun      bool   `json:"dry_run"`
	Uploaded    bool   `json:"uploaded"`
}

// Service runs drops. Runs are serialized.
type Service struct {
	resolver   Resolver
	downloader Downloader
	uploader   Uploader
	journal    *journal.Journal
	config     *Config
	zone       *time.Location
	logger     *slog.Logger
	now        func() time.Time
	newID      idgen.Generator

	mu sync.Mutex
}

// Option configures a Service during creation.
type Option func(*Service)

// WithResolver replaces the publisher metadata client.
func WithResolver(r Resolver) Option { return func(s *Service) { s.resolver = r } }

// WithDownloader replaces the publisher document client.
func WithDownloader(d Downloader) Option { return func(s *Service) { s.downloader = d } }

// WithUploader replaces the Dropbox client.
func WithUploader(u Uploader) Option { return func(s *Service) { s.uploader = u } }

// WithJournal records every run in db. The runs schema is applied.
func WithJournal(db *sql.DB) Option {
	return func(s *Service) {
		if err := journal.ApplySchema(db); err != nil {
			s.logger.Error("crossword: journal schema, journal disabled", "error", err)
			return
		}
		s.journal = journal.New(db, s.logger)
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithRunIDs overrides the run id generator.
func WithRunIDs(gen idgen.Generator) Option { return func(s *Service) { s.newID = gen } }

// New creates a Service. Publisher and Dropbox clients are built from cfg
// unless replaced by options. cfg is not validated here; see Config.Validate.
func New(ctx context.Context, cfg *Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	zone, err := civildate.LoadZone(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	s := &Service{
		config: cfg,
		zone:   zone,
		logger: logger,
		now:    time.Now,
		newID:  journal.NewRunID,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.resolver == nil || s.downloader == nil {
		pc := publisher.New(cfg.Publisher, nil, logger)
		if s.resolver == nil {
			s.resolver = pc
		}
		if s.downloader == nil {
			s.downloader = pc
		}
	}
	if s.uploader == nil {
		s.uploader = dropbox.New(ctx, cfg.Dropbox, nil, logger)
	}
	return s, nil
}

// Tomorrow returns the target date of a default run.
func (s *Service) Tomorrow() civildate.Date {
	return civildate.Tomorrow(s.now(), s.zone)
}

// DestinationPath joins root with the document filename for d.
func DestinationPath(root string, d civildate.Date, documentName string) string {
	return path.Join(root, civildate.Filename(d, documentName))
}

// RunTomorrow runs the drop for tomorrow in the reference zone.
func (s *Service) RunTomorrow(ctx context.Context, dryRun bool) (*Result, error) {
	return s.Run(ctx, s.Tomorrow(), dryRun)
}

// Run resolves, downloads and uploads the puzzle of date. With dryRun the
// upload is skipped after a successful download. The returned Result
// reports how far the run got; it is nil only with ErrRunInProgress.
func (s *Service) Run(ctx context.Context, date civildate.Date, dryRun bool) (*Result, error) {
	if !s.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()

	r := s.begin(date, dryRun)
	r.log.Info("crossword: run started", "dry_run", dryRun)

	id, err := s.resolver.ResolveID(ctx, date)
	if err != nil {
		return s.finish(ctx, r, "resolve", err)
	}
	r.res.PuzzleID = string(id)

	err = s.transfer(ctx, r, id)
	return s.finish(ctx, r, "transfer", err)
}

// Transfer downloads the puzzle id and uploads it under date's filename,
// for callers that already hold the id.
func (s *Service) Transfer(ctx context.Context, id publisher.PuzzleID, date civildate.Date, dryRun bool) (*Result, error) {
	if !s.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()

	r := s.begin(date, dryRun)
	r.res.PuzzleID = string(id)
	err := s.transfer(ctx, r, id)
	return s.finish(ctx, r, "transfer", err)
}

// run is the per-invocation state; nothing in it outlives the call.
type run struct {
	res     *Result
	log     *slog.Logger
	started time.Time
}

func (s *Service) begin(date civildate.Date, dryRun bool) *run {
	res := &Result{
		RunID:  s.newID(),
		Date:   date.String(),
		DryRun: dryRun,
		Path:   DestinationPath(s.config.UploadRoot, date, s.config.DocumentName),
	}
	return &run{
		res:     res,
		log:     s.logger.With("run_id", res.RunID, "date", res.Date),
		started: s.now(),
	}
}

func (s *Service) transfer(ctx context.Context, r *run, id publisher.PuzzleID) error {
	r.log.Info("crossword: downloading", "puzzle_id", string(id))
	data, err := s.downloader.Download(ctx, id)
	if err != nil {
		return err
	}
	r.res.Bytes = len(data)

	if !s.config.SkipPDFCheck {
		info, err := pdfcheck.Inspect(data)
		if err != nil {
			return err
		}
		r.res.Pages = info.Pages
		if info.ParseErr != nil {
			r.log.Warn("crossword: pdf structure not parsed, uploading as is", "error", info.ParseErr)
		}
	}
	r.log.Info("crossword: downloaded", "puzzle_id", string(id), "bytes", len(data), "pages", r.res.Pages)

	if r.res.DryRun {
		r.log.Info("crossword: dry run, upload skipped", "path", r.res.Path)
		return nil
	}

	meta, err := s.uploader.Upload(ctx, r.res.Path, data)
	if err != nil {
		return err
	}
	r.res.Uploaded = true
	r.res.ContentHash = meta.ContentHash
	if meta.PathDisplay != "" {
		r.res.Path = meta.PathDisplay
	}
	r.log.Info("crossword: uploaded", "path", r.res.Path, "content_hash", meta.ContentHash)
	return nil
}

func (s *Service) finish(ctx context.Context, r *run, stage string, err error) (*Result, error) {
	entry := journal.Entry{
		RunID:       r.res.RunID,
		TargetDate:  r.res.Date,
		PuzzleID:    r.res.PuzzleID,
		DryRun:      r.res.DryRun,
		Status:      journal.StatusOK,
		DestPath:    r.res.Path,
		Size:        int64(r.res.Bytes),
		ContentHash: r.res.ContentHash,
		StartedAt:   r.started,
		FinishedAt:  s.now(),
	}

	if err != nil {
		attrs := []any{"stage", stage, "kind", Kind(err), "error", err}
		if code := StatusCode(err); code != 0 {
			attrs = append(attrs, "status", code)
		}
		r.log.Error("crossword: run failed", attrs...)
		entry.Status = journal.StatusFailed
		entry.ErrorKind = Kind(err)
		entry.Error = err.Error()
		err = fmt.Errorf("crossword: %s %s: %w", stage, r.res.Date, err)
	} else {
		r.log.Info("crossword: run finished", "uploaded", r.res.Uploaded,
			"duration_ms", entry.FinishedAt.Sub(r.started).Milliseconds())
	}

	if s.journal != nil {
		s.journal.Record(context.WithoutCancel(ctx), entry)
	}
	return r.res, err
}

// Recent lists the journal, newest first. Without a journal it is empty.
func (s *Service) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	if s.journal == nil {
		return []journal.Entry{}, nil
	}
	return s.journal.Recent(ctx, limit)
}

// NewScheduler returns a daily scheduler that runs the drop for tomorrow.
// With dryRun every scheduled run skips the upload.
func (s *Service) NewScheduler(dryRun bool) (*scheduler.Scheduler, error) {
	cfg := s.config.Scheduler
	cfg.Zone = s.zone
	return scheduler.New(cfg, s.scheduledJob(dryRun), s.logger)
}

func (s *Service) scheduledJob(dryRun bool) scheduler.Job {
	return func(ctx context.Context) error {
		_, err := s.RunTomorrow(ctx, dryRun)
		if errors.Is(err, ErrRunInProgress) {
			s.logger.Warn("crossword: scheduled run skipped, another run is active")
			return nil
		}
		return err
	}
}
