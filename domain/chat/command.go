package chat

// JoinCommand is the payload of a "joinRoom" event.
type JoinCommand struct {
	ConnectionID string
	StudentID    string
	CompanyID    string
}

// PostMessageCommand is the payload of a "sendMessage" event.
type PostMessageCommand struct {
	ConnectionID string
	StudentID    string
	CompanyID    string
	Sender       Sender
	Body         string
}

// GetMessagesCommand asks for the backlog of a conversation.
type GetMessagesCommand struct {
	Viewer    Sender
	StudentID string
	CompanyID string
}
