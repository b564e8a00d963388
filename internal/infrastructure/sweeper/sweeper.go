// Package sweeper re-dispatches ingestion for documents stuck in processing.
package sweeper

import (
	"context"
	"time"

	"github.com/mileusna/crontab"
	"github.com/rs/zerolog"

	"jan-server/services/docchat-api/internal/domain/dispatch"
	"jan-server/services/docchat-api/internal/domain/document"
	"jan-server/services/docchat-api/internal/domain/worker"
	"jan-server/services/docchat-api/internal/infrastructure/metrics"
	"jan-server/services/docchat-api/internal/utils/platformerrors"
)

const jobTimeout = 2 * time.Minute

// StaleDocuments is the slice of the document repository the sweeper needs.
type StaleDocuments interface {
	FindStale(ctx context.Context, status document.Status, updatedBefore time.Time, limit int) ([]*document.Document, error)
	Touch(ctx context.Context, publicID string) error
}

// Ingester re-sends ingestion requests.
type Ingester interface {
	Ingest(ctx context.Context, req worker.IngestRequest) *dispatch.Task
}

// Config controls the sweep.
type Config struct {
	Enabled bool
	Cron    string
	After   time.Duration
	Batch   int
}

// Sweeper finds documents whose worker callback never arrived and asks the worker again.
type Sweeper struct {
	ctab      *crontab.Crontab
	documents StaleDocuments
	ingester  Ingester
	cfg       Config
	locker    Locker
	now       func() time.Time
	log       zerolog.Logger
}

// New creates a sweeper. Nothing is scheduled until Run.
func New(documents StaleDocuments, ingester Ingester, cfg Config, log zerolog.Logger) *Sweeper {
	if cfg.Batch <= 0 {
		cfg.Batch = 50
	}
	if cfg.After <= 0 {
		cfg.After = 15 * time.Minute
	}
	if cfg.Cron == "" {
		cfg.Cron = "*/5 * * * *"
	}
	return &Sweeper{
		ctab:      crontab.New(),
		documents: documents,
		ingester:  ingester,
		cfg:       cfg,
		now:       time.Now,
		log:       log.With().Str("component", "stale-sweeper").Logger(),
	}
}

// UseLocker makes every scheduled sweep take l first, so one replica sweeps per tick.
func (s *Sweeper) UseLocker(l Locker) {
	s.locker = l
}

// Run schedules the sweep and blocks until ctx ends. A disabled sweeper just waits.
func (s *Sweeper) Run(ctx context.Context) error {
	if !s.cfg.Enabled {
		<-ctx.Done()
		return nil
	}

	if err := s.ctab.AddJob(s.cfg.Cron, func() {
		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), jobTimeout)
		defer cancel()
		s.runJob(jobCtx)
	}); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add stale sweep job")
	}
	s.log.Info().Str("cron", s.cfg.Cron).Dur("after", s.cfg.After).Msg("stale document sweep scheduled")

	<-ctx.Done()
	s.ctab.Shutdown()
	return nil
}

func (s *Sweeper) runJob(ctx context.Context) {
	sweep := func(ctx context.Context) error {
		_, err := s.SweepOnce(ctx)
		return err
	}
	if s.locker == nil {
		if err := sweep(ctx); err != nil {
			s.log.Error().Err(err).Msg("stale document sweep failed")
		}
		return
	}

	ran := false
	err := s.locker.WithLock(ctx, LockName, jobTimeout, func(ctx context.Context) error {
		ran = true
		return sweep(ctx)
	})
	switch {
	case err == nil:
	case !ran:
		s.log.Debug().Err(err).Msg("stale sweep skipped, lock held by another replica")
	default:
		s.log.Error().Err(err).Msg("stale document sweep failed")
	}
}

// SweepOnce re-dispatches one batch of stale documents and returns how many were requeued.
// Documents are touched so the next sweep waits another full period before retrying them.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.After)
	docs, err := s.documents.FindStale(ctx, document.StatusProcessing, cutoff, s.cfg.Batch)
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, doc := range docs {
		if err := s.documents.Touch(ctx, doc.PublicID); err != nil {
			s.log.Warn().Err(err).Str("document_id", doc.PublicID).Msg("touch stale document failed")
			continue
		}
		s.ingester.Ingest(ctx, doc.IngestRequest())
		metrics.StaleDocumentsRequeued.Inc()
		requeued++
	}

	if requeued > 0 {
		s.log.Info().Int("requeued", requeued).Time("cutoff", cutoff).Msg("stale documents re-dispatched")
	}
	return requeued, nil
}
