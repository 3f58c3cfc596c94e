package repositories

import (
	"fmt"
	"job-chat/domain/chat"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the message record. The layout is protobuf compatible so
// that records stay readable by any protobuf tool:
//
//	message ChatMessage {
//	  uint64 id = 1; string company_id = 2; string student_id = 3;
//	  int32 sender = 4; string body = 5; int64 created_at_unix_nano = 6;
//	}
const (
	fieldID protowire.Number = iota + 1
	fieldCompanyID
	fieldStudentID
	fieldSender
	fieldBody
	fieldCreatedAt
)

// EncodeMessage serialises a message for badger values and the pub/sub wire.
func EncodeMessage(m chat.Message) []byte {
	b := make([]byte, 0, 32+len(m.Body)+len(m.Key.CompanyID)+len(m.Key.StudentID))
	b = protowire.AppendTag(b, fieldID, protowire.VarintType)
	b = protowire.AppendVarint(b, m.ID)
	b = protowire.AppendTag(b, fieldCompanyID, protowire.BytesType)
	b = protowire.AppendString(b, m.Key.CompanyID)
	b = protowire.AppendTag(b, fieldStudentID, protowire.BytesType)
	b = protowire.AppendString(b, m.Key.StudentID)
	b = protowire.AppendTag(b, fieldSender, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Sender))
	b = protowire.AppendTag(b, fieldBody, protowire.BytesType)
	b = protowire.AppendString(b, m.Body)
	b = protowire.AppendTag(b, fieldCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.CreatedAt.UnixNano()))
	return b
}

// DecodeMessage is the inverse of EncodeMessage. Unknown fields are skipped.
func DecodeMessage(b []byte) (chat.Message, error) {
	var m chat.Message
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return chat.Message{}, fmt.Errorf("decode tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case typ == protowire.VarintType && (num == fieldID || num == fieldSender || num == fieldCreatedAt):
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return chat.Message{}, fmt.Errorf("decode field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldID:
				m.ID = v
			case fieldSender:
				m.Sender = chat.Sender(v)
			case fieldCreatedAt:
				m.CreatedAt = time.Unix(0, int64(v)).UTC()
			}
		case typ == protowire.BytesType && (num == fieldCompanyID || num == fieldStudentID || num == fieldBody):
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return chat.Message{}, fmt.Errorf("decode field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldCompanyID:
				m.Key.CompanyID = v
			case fieldStudentID:
				m.Key.StudentID = v
			case fieldBody:
				m.Body = v
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return chat.Message{}, fmt.Errorf("skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if !m.Sender.Valid() {
		return chat.Message{}, fmt.Errorf("decode sender %d: invalid value", int(m.Sender))
	}
	return m, nil
}
