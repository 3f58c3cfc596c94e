package services

import (
	"context"
	"job-chat/contract"
	"job-chat/domain/chat"
	"job-chat/runtime"
)

// IChatService is what a transport needs to drive live conversations.
type IChatService interface {
	JoinRoom(ctx context.Context, cmd chat.JoinCommand) (chat.ConversationKey, []chat.Message, error)
	PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (chat.Message, error)
	LeaveRoom(cmd chat.JoinCommand) (chat.ConversationKey, error)
	Disconnect(connectionID string)
}

type ChatService struct {
	dispatcher *runtime.Dispatcher
}

func NewChatService(d *runtime.Dispatcher) *ChatService {
	return &ChatService{dispatcher: d}
}

// JoinRoom subscribes the connection and returns the backlog it must render
// before any live message.
func (s *ChatService) JoinRoom(ctx context.Context, cmd chat.JoinCommand) (chat.ConversationKey, []chat.Message, error) {
	return s.dispatcher.OnJoinWithHistory(ctx, contract.ConnectionID(cmd.ConnectionID), cmd.StudentID, cmd.CompanyID)
}

func (s *ChatService) PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (chat.Message, error) {
	return s.dispatcher.OnSend(ctx, contract.ConnectionID(cmd.ConnectionID), cmd.StudentID, cmd.CompanyID, cmd.Sender, cmd.Body)
}

func (s *ChatService) LeaveRoom(cmd chat.JoinCommand) (chat.ConversationKey, error) {
	return s.dispatcher.OnLeave(contract.ConnectionID(cmd.ConnectionID), cmd.StudentID, cmd.CompanyID)
}

func (s *ChatService) Disconnect(connectionID string) {
	s.dispatcher.OnDisconnect(contract.ConnectionID(connectionID))
}
