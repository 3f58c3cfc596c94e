package realtime

import (
	"encoding/json"
	"fmt"
	"job-chat/domain/chat"
	"job-chat/errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

const (
	frameJoinRoom       = "joinRoom"
	frameSendMessage    = "sendMessage"
	frameLeaveRoom      = "leaveRoom"
	frameHistory        = "history"
	frameReceiveMessage = "receiveMessage"
	frameLeft           = "left"
	frameError          = "error"

	codeBadRequest = "bad_request"
)

var validate = validator.New()

type inboundFrame struct {
	Type      string `json:"type" validate:"required,oneof=joinRoom sendMessage leaveRoom"`
	StudentID string `json:"studentId"`
	CompanyID string `json:"companyId"`
	Sender    string `json:"sender" validate:"required_if=Type sendMessage"`
	Message   string `json:"message"`
}

// decodeFrame parses and validates one inbound frame. Identifiers are left
// to the core so that they surface as invalid_identity.
func decodeFrame(data []byte, maxMessageLength int) (inboundFrame, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return inboundFrame{}, fmt.Errorf("invalid payload: %w", err)
	}
	if err := validate.Struct(frame); err != nil {
		return inboundFrame{}, err
	}
	if frame.Type == frameSendMessage && maxMessageLength > 0 {
		if err := validate.Var(frame.Message, fmt.Sprintf("max=%d", maxMessageLength)); err != nil {
			return inboundFrame{}, fmt.Errorf("%w: message longer than %d characters", errors.ErrValidation, maxMessageLength)
		}
	}
	return frame, nil
}

type messagePayload struct {
	ID        uint64    `json:"id"`
	StudentID string    `json:"studentId"`
	CompanyID string    `json:"companyId"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type receiveFrame struct {
	Type string `json:"type"`
	messagePayload
}

type historyFrame struct {
	Type      string           `json:"type"`
	StudentID string           `json:"studentId"`
	CompanyID string           `json:"companyId"`
	Messages  []messagePayload `json:"messages"`
}

type leftFrame struct {
	Type      string `json:"type"`
	StudentID string `json:"studentId"`
	CompanyID string `json:"companyId"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

func toPayload(m chat.Message) messagePayload {
	return messagePayload{
		ID:        m.ID,
		StudentID: m.Key.StudentID,
		CompanyID: m.Key.CompanyID,
		Sender:    m.Sender.String(),
		Message:   m.Body,
		Timestamp: m.CreatedAt,
	}
}

func toPayloads(messages []chat.Message) []messagePayload {
	return lo.Map(messages, func(m chat.Message, _ int) messagePayload { return toPayload(m) })
}
