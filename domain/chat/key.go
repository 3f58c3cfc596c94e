package chat

import (
	"fmt"
	"job-chat/errors"
	"regexp"
	"strings"
)

const roomPrefix = "room_"

// identifierPattern excludes '_' and ':' so that both the room name and the
// storage keys built from a ConversationKey stay injective.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// ConversationKey groups every message and live subscriber of one
// (student, company) pair.
type ConversationKey struct {
	CompanyID string
	StudentID string
}

// ResolveKey is the single source of truth for "which conversation".
// It is a pure function of the two identifiers.
func ResolveKey(studentID, companyID string) (ConversationKey, error) {
	studentID = strings.TrimSpace(studentID)
	companyID = strings.TrimSpace(companyID)
	if err := ValidateIdentifier("student", studentID); err != nil {
		return ConversationKey{}, err
	}
	if err := ValidateIdentifier("company", companyID); err != nil {
		return ConversationKey{}, err
	}
	return ConversationKey{CompanyID: companyID, StudentID: studentID}, nil
}

func ValidateIdentifier(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s identifier is missing", errors.ErrInvalidIdentity, kind)
	}
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("%w: malformed %s identifier %q", errors.ErrInvalidIdentity, kind, id)
	}
	return nil
}

// String renders the room name, room_<companyId>_<studentId>.
func (k ConversationKey) String() string {
	return roomPrefix + k.CompanyID + "_" + k.StudentID
}

// ParseKey is the inverse of String.
func ParseKey(room string) (ConversationKey, error) {
	rest, ok := strings.CutPrefix(room, roomPrefix)
	if !ok {
		return ConversationKey{}, fmt.Errorf("%w: %q is not a room name", errors.ErrInvalidIdentity, room)
	}
	companyID, studentID, ok := strings.Cut(rest, "_")
	if !ok {
		return ConversationKey{}, fmt.Errorf("%w: %q is not a room name", errors.ErrInvalidIdentity, room)
	}
	return ResolveKey(studentID, companyID)
}
