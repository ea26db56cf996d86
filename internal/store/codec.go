package store

import (
	"fmt"
	"time"

	"github.com/anzalkabeer/codechicks/internal/auth"
	"github.com/anzalkabeer/codechicks/internal/chat"
	"google.golang.org/protobuf/encoding/protowire"
)

// Stored records use the protobuf wire format without generated types.
//
//	message Message {
//	  string id = 1;
//	  string sender_id = 2;
//	  string sender_display_name = 3;
//	  string content = 4;
//	  int64  created_at = 5; // unix nanos
//	  string reply_to_id = 6;
//	  string reply_to_sender_name = 7;
//	  string reply_to_content_snippet = 8;
//	  bool   deleted = 9;
//	}
//
//	message User {
//	  string id = 1;
//	  string display_name = 2;
//	  string role = 3;
//	  int64  created_at = 4; // unix nanos
//	}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func encodeMessage(m chat.Message) []byte {
	var b []byte
	b = appendString(b, 1, m.ID)
	b = appendString(b, 2, m.SenderID)
	b = appendString(b, 3, m.SenderDisplayName)
	b = appendString(b, 4, m.Content)
	b = appendInt64(b, 5, m.CreatedAt.UnixNano())
	if m.Reply != nil {
		b = appendString(b, 6, m.Reply.MessageID)
		b = appendString(b, 7, m.Reply.SenderName)
		b = appendString(b, 8, m.Reply.ContentSnippet)
	}
	if m.Deleted {
		b = protowire.AppendTag(b, 9, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	return b
}

func decodeMessage(b []byte) (chat.Message, error) {
	var (
		m     chat.Message
		reply chat.ReplySummary
	)
	err := consumeFields(b, func(num protowire.Number, s string, v uint64) {
		switch num {
		case 1:
			m.ID = s
		case 2:
			m.SenderID = s
		case 3:
			m.SenderDisplayName = s
		case 4:
			m.Content = s
		case 5:
			m.CreatedAt = time.Unix(0, int64(v)).UTC()
		case 6:
			reply.MessageID = s
		case 7:
			reply.SenderName = s
		case 8:
			reply.ContentSnippet = s
		case 9:
			m.Deleted = protowire.DecodeBool(v)
		}
	})
	if err != nil {
		return chat.Message{}, err
	}
	if reply.MessageID != "" {
		m.Reply = &reply
	}
	return m, nil
}

func encodeUser(u UserRecord) []byte {
	var b []byte
	b = appendString(b, 1, u.ID)
	b = appendString(b, 2, u.DisplayName)
	b = appendString(b, 3, string(u.Role))
	b = appendInt64(b, 4, u.CreatedAt.UnixNano())
	return b
}

func decodeUser(b []byte) (UserRecord, error) {
	var u UserRecord
	err := consumeFields(b, func(num protowire.Number, s string, v uint64) {
		switch num {
		case 1:
			u.ID = s
		case 2:
			u.DisplayName = s
		case 3:
			u.Role = auth.Role(s)
		case 4:
			u.CreatedAt = time.Unix(0, int64(v)).UTC()
		}
	})
	return u, err
}

// consumeFields walks every field of a record. Length-delimited values are
// passed as s, varints as v; unknown wire types are skipped.
func consumeFields(b []byte, field func(num protowire.Number, s string, v uint64)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("decode tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch typ {
		case protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return fmt.Errorf("decode field %d: %w", num, protowire.ParseError(n))
			}
			field(num, s, 0)
			b = b[n:]
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("decode field %d: %w", num, protowire.ParseError(n))
			}
			field(num, "", v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}
