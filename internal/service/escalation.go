package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/quotedesk/rfq-service/internal/model"
	"github.com/quotedesk/rfq-service/internal/notify"
	"github.com/quotedesk/rfq-service/internal/repo"
	"go.uber.org/zap"
)

// deletionThreshold is the reminder count at which a subcontractor
// record is removed: the 4th reminder is the last one ever recorded.
const deletionThreshold = 4

// EscalationService runs the fixed reminder sequence for
// subcontractors missing from the data warehouse.
type EscalationService struct {
	repo     repo.RepositoryInterface
	notifier notify.Notifier
	log      *zap.SugaredLogger
}

func NewEscalationService(r repo.RepositoryInterface, n notify.Notifier, logger *zap.SugaredLogger) *EscalationService {
	return &EscalationService{repo: r, notifier: n, log: logger}
}

// BatchResult lists every message rendered and sent in one run. An
// empty batch is a valid result.
type BatchResult struct {
	Count    int      `json:"count"`
	Messages []string `json:"messages"`
}

// RunBatch escalates each listed subcontractor one step. With no ids
// given it resolves the records flagged missing by the DWH
// reconciliation. Processing is strictly sequential; a send failure
// aborts the remainder of the batch (known limitation, kept on purpose
// rather than guessing a retry policy the callers never had).
func (s *EscalationService) RunBatch(ctx context.Context, ids []string) (*BatchResult, error) {
	if len(ids) == 0 {
		missing, err := s.repo.MissingSubcontractors(ctx)
		if err != nil {
			return nil, err
		}
		for _, sub := range missing {
			ids = append(ids, sub.ID)
		}
	}

	result := &BatchResult{Messages: []string{}}
	for _, id := range ids {
		sub, err := s.repo.Subcontractor(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			s.log.Infof("escalation: subcontractor %s not found, skipping", id)
			continue
		}
		if err != nil {
			return nil, err
		}

		seq := sub.RemindersSent + 1
		body := s.renderEscalation(ctx, sub, seq)
		msg := notify.Message{
			Recipient:     sub.Email,
			RecipientName: sub.ContactName,
			Subject:       escalationSubject(seq, sub.Name),
			Body:          body,
		}
		if err := s.notifier.Send(ctx, msg); err != nil {
			return nil, fmt.Errorf("escalation: send reminder %d to %s: %w", seq, sub.ID, err)
		}

		if err := s.repo.SetRemindersSent(ctx, sub.ID, seq); err != nil {
			return nil, err
		}
		if err := s.repo.PublishEvent(ctx, "subcontractor.reminded", sub.ID,
			map[string]interface{}{"sequence": seq}); err != nil {
			s.log.Warnf("escalation: publish reminded event for %s: %v", sub.ID, err)
		}

		if seq >= deletionThreshold {
			if err := s.repo.DeleteSubcontractor(ctx, sub.ID); err != nil {
				return nil, err
			}
			if err := s.repo.PublishEvent(ctx, "subcontractor.deleted", sub.ID, nil); err != nil {
				s.log.Warnf("escalation: publish deleted event for %s: %v", sub.ID, err)
			}
			s.log.Infof("escalation: subcontractor %s deleted after reminder %d", sub.ID, seq)
		}

		result.Messages = append(result.Messages, body)
		result.Count++
	}
	return result, nil
}

// renderEscalation builds the message body for the given sequence
// number, enriched with the subcontractor's latest quote where one
// exists. Missing optional fields render as "N/A".
func (s *EscalationService) renderEscalation(ctx context.Context, sub *model.Subcontractor, seq int) string {
	project, workItem, amount := "N/A", "N/A", "N/A"
	if quote, err := s.repo.LatestQuote(ctx, sub.ID); err == nil {
		amount = quote.Amount.StringFixed(2)
		if rfq, err := s.repo.RfqByID(ctx, quote.RfqID); err == nil {
			project = orNA(rfq.ProjectName)
			workItem = orNA(rfq.WorkItem)
		}
	}

	header := fmt.Sprintf("Dear %s,\n\n", orNA(sub.ContactName))
	footer := fmt.Sprintf("\n\nCompany: %s\nProject: %s\nWork item: %s\nLast quote: %s\n",
		orNA(sub.Name), project, workItem, amount)

	var core string
	switch seq {
	case 1:
		core = "Your company record could not be matched against our data warehouse. " +
			"Please review and confirm your master data at your earliest convenience."
	case 2:
		core = "This is a follow-up to our earlier notice: your company record is still " +
			"missing from our data warehouse. Please confirm your master data."
	case 3:
		core = "Warning: your company record is still unconfirmed. If no action is taken " +
			"before the next reconciliation cycle, your data will be removed from our systems."
	case 4:
		core = "Final notice: your company data has been removed from our systems following " +
			"repeated unanswered reminders."
	default:
		// should not happen once deletion fires at the threshold
		core = fmt.Sprintf("Reminder %d regarding your unconfirmed company record.", seq)
	}
	return header + core + footer
}

func escalationSubject(seq int, company string) string {
	return fmt.Sprintf("Reminder %d: master data confirmation for %s", seq, company)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
