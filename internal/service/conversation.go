package service

import (
	"context"
	"errors"

	"github.com/quotedesk/rfq-service/internal/model"
	"github.com/quotedesk/rfq-service/internal/repo"
)

// ParentKind tags which table a conversation parent was found in.
type ParentKind string

const (
	ParentRfqMessage ParentKind = "rfq_message"
	ParentLogEntry   ParentKind = "log_entry"
)

// ParentMessage is the tagged result of a parent lookup: exactly one
// of RfqMessage or LogEntry is set, per Kind.
type ParentMessage struct {
	Kind       ParentKind
	RfqMessage *model.RfqMessage
	LogEntry   *model.ActivityLogEntry
}

// ConversationService resolves reply parents that may live in either
// the message table or the activity log.
type ConversationService struct {
	repo repo.RepositoryInterface
}

func NewConversationService(r repo.RepositoryInterface) *ConversationService {
	return &ConversationService{repo: r}
}

// ResolveParent tries the message table first, then the activity log.
func (s *ConversationService) ResolveParent(ctx context.Context, id string) (*ParentMessage, error) {
	msg, err := s.repo.RfqMessageByID(ctx, id)
	if err == nil {
		return &ParentMessage{Kind: ParentRfqMessage, RfqMessage: msg}, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	entry, err := s.repo.ActivityLogByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ParentMessage{Kind: ParentLogEntry, LogEntry: entry}, nil
}
