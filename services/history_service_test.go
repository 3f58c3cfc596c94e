package services

import (
	"context"
	"fmt"
	"job-chat/domain/chat"
	"job-chat/errors"
	"job-chat/mocks"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestHistoryService_OpenConversation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	key := chat.ConversationKey{CompanyID: "C1", StudentID: "S1"}

	t.Run("student cannot open a conversation the company has not started", func(t *testing.T) {
		req := require.New(t)
		repository := mocks.NewMockIMessageRepository(ctrl)
		svc := NewHistoryService(log, repository, true)
		repository.EXPECT().ListOrdered(gomock.Any(), key).Return([]chat.Message{}, nil)

		messages, err := svc.OpenConversation(context.Background(),
			chat.GetMessagesCommand{Viewer: chat.SenderStudent, StudentID: "S1", CompanyID: "C1"})

		req.ErrorIs(err, errors.ErrConversationNotStarted)
		req.Nil(messages)
	})

	t.Run("company may open an empty conversation", func(t *testing.T) {
		req := require.New(t)
		repository := mocks.NewMockIMessageRepository(ctrl)
		svc := NewHistoryService(log, repository, true)
		repository.EXPECT().ListOrdered(gomock.Any(), key).Return([]chat.Message{}, nil)

		messages, err := svc.OpenConversation(context.Background(),
			chat.GetMessagesCommand{Viewer: chat.SenderCompany, StudentID: "S1", CompanyID: "C1"})

		req.NoError(err)
		req.Empty(messages)
	})

	t.Run("student may open an empty conversation when the policy is off", func(t *testing.T) {
		req := require.New(t)
		repository := mocks.NewMockIMessageRepository(ctrl)
		svc := NewHistoryService(log, repository, false)
		repository.EXPECT().ListOrdered(gomock.Any(), key).Return([]chat.Message{}, nil)

		_, err := svc.OpenConversation(context.Background(),
			chat.GetMessagesCommand{Viewer: chat.SenderStudent, StudentID: "S1", CompanyID: "C1"})

		req.NoError(err)
	})

	t.Run("student sees a started conversation", func(t *testing.T) {
		req := require.New(t)
		repository := mocks.NewMockIMessageRepository(ctrl)
		svc := NewHistoryService(log, repository, true)
		backlog := []chat.Message{{ID: 1, Key: key, Sender: chat.SenderCompany, Body: "Hello", CreatedAt: time.Now().UTC()}}
		repository.EXPECT().ListOrdered(gomock.Any(), key).Return(backlog, nil)

		messages, err := svc.OpenConversation(context.Background(),
			chat.GetMessagesCommand{Viewer: chat.SenderStudent, StudentID: "S1", CompanyID: "C1"})

		req.NoError(err)
		req.Equal(backlog, messages)
	})
}

func TestHistoryService_LoadHistory(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	t.Run("invalid identity never reaches the store", func(t *testing.T) {
		req := require.New(t)
		repository := mocks.NewMockIMessageRepository(ctrl)
		svc := NewHistoryService(log, repository, true)

		_, err := svc.LoadHistory(context.Background(), "", "C1")
		req.ErrorIs(err, errors.ErrInvalidIdentity)
	})

	t.Run("store failure is a persistence error", func(t *testing.T) {
		req := require.New(t)
		repository := mocks.NewMockIMessageRepository(ctrl)
		svc := NewHistoryService(log, repository, true)
		repository.EXPECT().ListOrdered(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("io"))

		_, err := svc.LoadHistory(context.Background(), "S1", "C1")
		req.ErrorIs(err, errors.ErrPersistence)
	})
}

func TestHistoryService_ListCounterparts(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	repository := mocks.NewMockIMessageRepository(ctrl)
	svc := NewHistoryService(log, repository, true)

	// Given a student talking to several companies
	repository.EXPECT().ListCounterparts(gomock.Any(), chat.SenderStudent, "S1").
		Return([]string{"C2", "C1", "C10"}, nil)

	// Then the list is sorted
	companies, err := svc.ListCounterparts(context.Background(), chat.SenderStudent, "S1")
	req.NoError(err)
	req.Equal([]string{"C1", "C10", "C2"}, companies)

	// And malformed input is rejected
	_, err = svc.ListCounterparts(context.Background(), chat.SenderCompany, "C 1")
	req.ErrorIs(err, errors.ErrInvalidIdentity)
	_, err = svc.ListCounterparts(context.Background(), chat.Sender(9), "C1")
	req.ErrorIs(err, errors.ErrValidation)
}
