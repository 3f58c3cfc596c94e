package services

import (
	"context"
	"fmt"
	"job-chat/contract"
	"job-chat/domain/chat"
	"job-chat/errors"
	"log/slog"
	"sort"
)

// IHistoryService serves the read side of conversations: page loads and
// conversation lists.
type IHistoryService interface {
	LoadHistory(ctx context.Context, studentID, companyID string) ([]chat.Message, error)
	OpenConversation(ctx context.Context, cmd chat.GetMessagesCommand) ([]chat.Message, error)
	ListCounterparts(ctx context.Context, party chat.Sender, id string) ([]string, error)
}

type HistoryService struct {
	log                 *slog.Logger
	repository          contract.IMessageRepository
	requireCompanyFirst bool
}

func NewHistoryService(log *slog.Logger, repository contract.IMessageRepository, requireCompanyFirst bool) *HistoryService {
	return &HistoryService{log: log, repository: repository, requireCompanyFirst: requireCompanyFirst}
}

// LoadHistory returns the full ordered backlog, empty for a conversation
// without messages.
func (s *HistoryService) LoadHistory(ctx context.Context, studentID, companyID string) ([]chat.Message, error) {
	key, err := chat.ResolveKey(studentID, companyID)
	if err != nil {
		return nil, err
	}
	messages, err := s.repository.ListOrdered(ctx, key)
	if err != nil {
		if errors.Is(err, errors.ErrPersistence) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return messages, nil
}

// OpenConversation is LoadHistory for a viewer opening the conversation page.
// With requireCompanyFirst a student cannot open a conversation the company
// has not started; a company always can.
func (s *HistoryService) OpenConversation(ctx context.Context, cmd chat.GetMessagesCommand) ([]chat.Message, error) {
	if !cmd.Viewer.Valid() {
		return nil, fmt.Errorf("%w: viewer %d", errors.ErrValidation, int(cmd.Viewer))
	}
	messages, err := s.LoadHistory(ctx, cmd.StudentID, cmd.CompanyID)
	if err != nil {
		return nil, err
	}
	if s.requireCompanyFirst && cmd.Viewer == chat.SenderStudent && len(messages) == 0 {
		s.log.Debug("Student opened a conversation not started yet",
			"student_id", cmd.StudentID, "company_id", cmd.CompanyID)
		return nil, fmt.Errorf("%w: company %s has not written to student %s yet",
			errors.ErrConversationNotStarted, cmd.CompanyID, cmd.StudentID)
	}
	return messages, nil
}

// ListCounterparts returns the sorted ids of everyone id has a conversation
// with: companies for a student, students for a company.
func (s *HistoryService) ListCounterparts(ctx context.Context, party chat.Sender, id string) ([]string, error) {
	if !party.Valid() {
		return nil, fmt.Errorf("%w: party %d", errors.ErrValidation, int(party))
	}
	if err := chat.ValidateIdentifier(party.String(), id); err != nil {
		return nil, err
	}
	ids, err := s.repository.ListCounterparts(ctx, party, id)
	if err != nil {
		if errors.Is(err, errors.ErrPersistence) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	sort.Strings(ids)
	return ids, nil
}
