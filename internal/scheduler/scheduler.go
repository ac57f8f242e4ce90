package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quotedesk/rfq-service/internal/notify"
	"github.com/quotedesk/rfq-service/internal/repo"
	"go.uber.org/zap"
)

// Cadence selects when ticks happen.
type Cadence string

const (
	// CadenceInterval polls on a fixed interval (the minute-precision
	// reminder family needs a one-minute interval).
	CadenceInterval Cadence = "interval"
	// CadenceDailyAt ticks once per day at a fixed local time.
	CadenceDailyAt Cadence = "daily_at"
)

// Scheduler is the long-lived poller that dispatches due reminders.
// Each entry gets exactly one dispatch attempt at its scheduled
// minute; a failed dispatch is logged and abandoned, never retried.
type Scheduler struct {
	repo     repo.RepositoryInterface
	notifier notify.Notifier
	loc      *time.Location
	cadence  Cadence
	interval time.Duration
	dailyAt  string
	log      *zap.SugaredLogger
}

func New(r repo.RepositoryInterface, n notify.Notifier, loc *time.Location,
	cadence Cadence, interval time.Duration, dailyAt string, logger *zap.SugaredLogger) *Scheduler {
	if cadence == "" {
		cadence = CadenceInterval
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		repo:     r,
		notifier: n,
		loc:      loc,
		cadence:  cadence,
		interval: interval,
		dailyAt:  dailyAt,
		log:      logger,
	}
}

// Run loops until the context is cancelled. Cancellation is observed
// between ticks only, so an in-flight dispatch-then-mark pair is never
// cut short.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Infof("reminder scheduler started (cadence=%s)", s.cadence)
	for {
		delay, err := s.nextDelay(time.Now().In(s.loc))
		if err != nil {
			return err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("reminder scheduler stopped")
			return ctx.Err()
		case <-timer.C:
		}
		s.Tick(ctx)
	}
}

// nextDelay computes the sleep before the next tick.
func (s *Scheduler) nextDelay(now time.Time) (time.Duration, error) {
	switch s.cadence {
	case CadenceDailyAt:
		at, err := time.Parse("15:04", s.dailyAt)
		if err != nil {
			return 0, fmt.Errorf("scheduler: bad daily_at %q: %w", s.dailyAt, err)
		}
		next := time.Date(now.Year(), now.Month(), now.Day(),
			at.Hour(), at.Minute(), 0, 0, s.loc)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next.Sub(now), nil
	default:
		return s.interval, nil
	}
}

// Tick runs one poll pass at the current minute.
func (s *Scheduler) Tick(ctx context.Context) int {
	return s.TickAt(ctx, time.Now().In(s.loc).Truncate(time.Minute))
}

// TickAt polls for entries due at the given minute and dispatches each
// one. Failures are per-entry: log, abandon, continue with the rest.
func (s *Scheduler) TickAt(ctx context.Context, now time.Time) int {
	entries, err := s.repo.PendingEntries(ctx, now)
	if err != nil {
		s.log.Errorf("scheduler: query pending entries: %v", err)
		return 0
	}
	// The dispatch loop runs on a detached context: once a batch is
	// picked up, every send must be followed by its sent-mark even if
	// shutdown begins mid-tick, or a restart re-sends the entry.
	// Cancellation is honored between ticks, in Run.
	dispatchCtx := context.Background()
	sent := 0
	for _, pe := range entries {
		if err := s.dispatch(dispatchCtx, pe, now); err != nil {
			s.log.Errorf("scheduler: dispatch entry %s: %v", pe.Entry.ID, err)
			continue
		}
		sent++
	}
	if sent > 0 {
		s.log.Infof("scheduler: dispatched %d reminder(s) at %s", sent, now.Format("2006-01-02 15:04"))
	}
	return sent
}

// dispatch resolves the recipient, sends, and marks the entry sent.
func (s *Scheduler) dispatch(ctx context.Context, pe repo.PendingEntry, now time.Time) error {
	sub, err := s.repo.Subcontractor(ctx, pe.Config.SubcontractorID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("subcontractor %s not found", pe.Config.SubcontractorID)
		}
		return err
	}

	msg := notify.Message{
		Recipient:     sub.Email,
		RecipientName: sub.ContactName,
		Subject: fmt.Sprintf("Quote reminder: RFQ %s due %s",
			pe.Config.RfqID, pe.Config.DueDate.Format("2006-01-02")),
		Body: pe.Config.EmailBody,
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		return err
	}

	if err := s.repo.MarkSent(ctx, pe.Entry.ID, now); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if err := s.repo.PublishEvent(ctx, "reminder.dispatched", pe.Entry.ID, map[string]interface{}{
		"rfq_id":           pe.Config.RfqID,
		"subcontractor_id": pe.Config.SubcontractorID,
		"reminder_at":      pe.Entry.ReminderAt,
	}); err != nil {
		s.log.Warnf("scheduler: publish dispatch event for %s: %v", pe.Entry.ID, err)
	}
	return nil
}
