package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"FinDash/internal/decision"
	"FinDash/internal/notifier"
	"FinDash/internal/portfolio"
	"FinDash/internal/prediction"
)

// Deps are the components the scheduled jobs drive.
type Deps struct {
	Loop       *decision.Loop
	Ledger     *portfolio.Manager
	Tracker    *prediction.Tracker
	Forecaster *prediction.Forecaster
	Notifier   notifier.Notifier
	// Tickers is the universe forecast by the predict job.
	Tickers []string
}

// Scheduler manages the cron jobs. Jobs and chat commands run one at a time.
type Scheduler struct {
	Cron *cron.Cron
	Ctx  context.Context

	deps Deps
	log  zerolog.Logger
	mu   sync.Mutex
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, deps Deps, log zerolog.Logger) *Scheduler {
	if deps.Notifier == nil {
		deps.Notifier = notifier.Noop{}
	}
	l := log.With().Str("component", "scheduler").Logger()
	cronLog := cron.PrintfLogger(&l)
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.SkipIfStillRunning(cronLog)),
		),
		Ctx:  ctx,
		deps: deps,
		log:  l,
	}
}

// RegisterAll registers the hourly cycle (turn then reconcile) and, when set,
// the prediction job.
func (s *Scheduler) RegisterAll(cycleCron, predictCron string) error {
	if _, err := s.Cron.AddFunc(cycleCron, s.cycleTask); err != nil {
		return fmt.Errorf("register cycle task: %w", err)
	}
	if predictCron != "" {
		if _, err := s.Cron.AddFunc(predictCron, s.predictTask); err != nil {
			return fmt.Errorf("register predict task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunCycleNow executes the cycle immediately (RUN_ON_START).
func (s *Scheduler) RunCycleNow() {
	s.cycleTask()
}

func (s *Scheduler) cycleTask() {
	s.log.Info().Msg("running cycle")
	if report, err := s.RunTurn(s.Ctx); err != nil {
		s.log.Error().Err(err).Msg("turn failed")
		s.trySend(fmt.Sprintf("❌ Échec du tour de décision: %v", err))
	} else if report != "" {
		s.trySend(report)
	}

	if report, err := s.RunReconcile(s.Ctx); err != nil {
		s.log.Error().Err(err).Msg("reconcile failed")
		s.trySend(fmt.Sprintf("❌ Échec du suivi des prédictions: %v", err))
	} else if report != "" {
		s.trySend(report)
	}
}

func (s *Scheduler) predictTask() {
	s.log.Info().Msg("running predict")
	report, err := s.RunPredict(s.Ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("predict failed")
		return
	}
	s.trySend(report)
}

// RunTurn runs one decision turn. The report is empty when nothing happened.
func (s *Scheduler) RunTurn(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	actions, err := s.deps.Loop.RunTurn(ctx)
	if err != nil {
		return "", err
	}
	if len(actions) == 0 {
		return "", nil
	}
	return notifier.FormatTurnReport(time.Now(), actions), nil
}

// RunReconcile evaluates due predictions. The report is empty when none were due.
func (s *Scheduler) RunReconcile(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.deps.Tracker.ReconcileDue(ctx)
	if err != nil {
		return "", err
	}
	if res == (prediction.ReconcileResult{}) {
		return "", nil
	}
	recs, err := s.deps.Tracker.Records()
	if err != nil {
		return "", err
	}
	return notifier.FormatReconcile(res, prediction.Summarize(recs)), nil
}

// RunPredict issues predictions for the configured universe.
func (s *Scheduler) RunPredict(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	forecasts, _, err := s.deps.Forecaster.Issue(ctx, s.deps.Tracker, s.deps.Tickers)
	if err != nil {
		return "", err
	}
	return notifier.FormatForecasts(forecasts), nil
}

// Status reports the ledger valuation and the recommendation for each holding.
func (s *Scheduler) Status(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.deps.Ledger.Snapshot()
	v, err := s.deps.Ledger.Valuation(ctx)
	if err != nil {
		return "", err
	}
	held := make([]string, 0, len(l.Positions))
	for t := range l.Positions {
		held = append(held, t)
	}
	return notifier.FormatLedgerStatus(l, v, s.deps.Loop.Signals(ctx, held)), nil
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	var (
		reply string
		err   error
	)
	switch command {
	case "/status", "/portefeuille":
		reply, err = s.Status(ctx)
	case "/turn", "/tour":
		reply, err = s.RunTurn(ctx)
		if err == nil && reply == "" {
			reply = "Aucune action."
		}
	case "/reconcile", "/suivi":
		reply, err = s.RunReconcile(ctx)
		if err == nil && reply == "" {
			reply = "Aucune prédiction à évaluer."
		}
	case "/predict", "/prediction":
		reply, err = s.RunPredict(ctx)
	default:
		return "Commandes disponibles:\n• /status\n• /turn\n• /reconcile\n• /predict"
	}
	if err != nil {
		return fmt.Sprintf("❌ %v", err)
	}
	return reply
}

type retrySender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

func (s *Scheduler) trySend(text string) {
	var err error
	if rs, ok := s.deps.Notifier.(retrySender); ok {
		err = rs.SendWithRetry(s.Ctx, text, 3)
	} else {
		err = s.deps.Notifier.Send(s.Ctx, text)
	}
	if err != nil {
		s.log.Error().Err(err).Msg("send notification failed")
	}
}
