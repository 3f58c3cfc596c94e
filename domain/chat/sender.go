package chat

import (
	"fmt"
	"job-chat/errors"
	"strings"
)

// Sender tells which side of the conversation authored a message.
// The identity itself is implied by the ConversationKey.
type Sender int

const (
	SenderStudent Sender = iota + 1
	SenderCompany
)

func ParseSender(s string) (Sender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "student":
		return SenderStudent, nil
	case "company":
		return SenderCompany, nil
	default:
		return 0, fmt.Errorf("%w: %q", errors.ErrUnknownSender, s)
	}
}

func (s Sender) String() string {
	switch s {
	case SenderStudent:
		return "student"
	case SenderCompany:
		return "company"
	default:
		return fmt.Sprintf("Sender(%d)", int(s))
	}
}

func (s Sender) Valid() bool {
	switch s {
	case SenderStudent, SenderCompany:
		return true
	default:
		return false
	}
}

// PartyID returns the identifier of the sender's side inside key.
func (s Sender) PartyID(key ConversationKey) (string, error) {
	switch s {
	case SenderStudent:
		return key.StudentID, nil
	case SenderCompany:
		return key.CompanyID, nil
	default:
		return "", fmt.Errorf("%w: %d", errors.ErrUnknownSender, int(s))
	}
}
