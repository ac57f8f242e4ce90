package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quotedesk/rfq-service/internal/model"
	"github.com/quotedesk/rfq-service/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// ErrNoValidDates means none of the submitted reminder dates parsed.
var ErrNoValidDates = errors.New("no valid reminder dates")

// ErrMissingField means a required request field was empty.
var ErrMissingField = errors.New("missing required field")

// ScheduleService owns reminder configs and their fire-once schedule
// entries.
type ScheduleService struct {
	repo repo.RepositoryInterface
	loc  *time.Location
	log  *zap.SugaredLogger
}

func NewScheduleService(r repo.RepositoryInterface, loc *time.Location, logger *zap.SugaredLogger) *ScheduleService {
	return &ScheduleService{repo: r, loc: loc, log: logger}
}

// ScheduleRequest carries one create-or-refresh reminder submission.
// Dates and TimeOfDay are user-entered strings in the business
// timezone; all dates share the one time of day.
type ScheduleRequest struct {
	RfqID           string
	SubcontractorID string
	Dates           []string
	TimeOfDay       string
	DueDate         string
	EmailBody       string
	UpdatedBy       string
}

// ScheduleResult reports the upserted config and how many fire
// instants are now armed.
type ScheduleResult struct {
	ConfigID  string
	Scheduled int
}

// CreateOrUpdate upserts the config for (RfqID, SubcontractorID) and
// its schedule entries in one transaction. Re-submitting an instant
// that already has an entry re-arms it instead of duplicating the row.
func (s *ScheduleService) CreateOrUpdate(ctx context.Context, req ScheduleRequest) (*ScheduleResult, error) {
	if req.RfqID == "" || req.SubcontractorID == "" {
		return nil, fmt.Errorf("%w: rfq and subcontractor ids", ErrMissingField)
	}
	if strings.TrimSpace(req.EmailBody) == "" {
		return nil, fmt.Errorf("%w: email body", ErrMissingField)
	}
	dueDate, err := time.ParseInLocation(dateLayout, req.DueDate, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: due date", ErrMissingField)
	}

	instants := normalizeInstants(req.Dates, req.TimeOfDay, s.loc)
	if len(instants) == 0 {
		return nil, ErrNoValidDates
	}

	var result ScheduleResult
	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		cfg, err := s.repo.ConfigByPair(ctx, tx, req.RfqID, req.SubcontractorID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			cfg = &model.ReminderConfig{
				RfqID:           req.RfqID,
				SubcontractorID: req.SubcontractorID,
				DueDate:         dueDate,
				EmailBody:       req.EmailBody,
				UpdatedBy:       req.UpdatedBy,
			}
			if err := s.repo.CreateConfig(ctx, tx, cfg); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			cfg.DueDate = dueDate
			cfg.EmailBody = req.EmailBody
			cfg.UpdatedBy = req.UpdatedBy
			if err := s.repo.UpdateConfig(ctx, tx, cfg); err != nil {
				return err
			}
		}

		for _, at := range instants {
			entry, err := s.repo.EntryByInstant(ctx, tx, cfg.ID, at)
			switch {
			case errors.Is(err, repo.ErrNotFound):
				if err := s.repo.CreateEntry(ctx, tx, &model.ReminderScheduleEntry{
					ConfigID:   cfg.ID,
					ReminderAt: at,
				}); err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				if err := s.repo.RearmEntry(ctx, tx, entry.ID); err != nil {
					return err
				}
			}
		}

		result = ScheduleResult{ConfigID: cfg.ID, Scheduled: len(instants)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Infof("reminder schedule for rfq=%s sub=%s: %d instants armed",
		req.RfqID, req.SubcontractorID, result.Scheduled)
	return &result, nil
}

// normalizeInstants combines each date with the shared time of day in
// the business timezone, truncated to the minute. Malformed dates are
// skipped rather than failing the whole request; the caller rejects an
// empty result. An unparseable time of day empties every combination.
func normalizeInstants(dates []string, timeOfDay string, loc *time.Location) []time.Time {
	tod, err := time.Parse(timeLayout, strings.TrimSpace(timeOfDay))
	if err != nil {
		return nil
	}
	var out []time.Time
	for _, d := range dates {
		day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(d), loc)
		if err != nil {
			continue
		}
		out = append(out, time.Date(day.Year(), day.Month(), day.Day(),
			tod.Hour(), tod.Minute(), 0, 0, loc))
	}
	return out
}
