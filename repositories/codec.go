package repositories

import (
	"fmt"
	"order-chat/domain/chat"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Values are stored in protobuf wire format so records stay readable by
// other tooling and tolerate added fields.

const (
	messageID protowire.Number = iota + 1
	messageChatID
	messageSenderID
	messageText
	messageTranslatedText
	messageIsRead
	messageCreatedAt
)

const (
	sessionID protowire.Number = iota + 1
	sessionOrderID
	sessionCounterpartyID
	sessionCreatedAt
	sessionTranslationEnabled
)

func encodeMessage(m chat.Message) []byte {
	var b []byte
	b = appendString(b, messageID, m.ID)
	b = appendString(b, messageChatID, string(m.ChatID))
	b = appendString(b, messageSenderID, m.SenderID)
	b = appendString(b, messageText, m.Text)
	b = appendString(b, messageTranslatedText, m.TranslatedText)
	b = appendBool(b, messageIsRead, m.IsRead)
	b = appendTime(b, messageCreatedAt, m.CreatedAt)
	return b
}

func decodeMessage(b []byte) (chat.Message, error) {
	var m chat.Message
	err := consumeFields(b, func(num protowire.Number, s string, v uint64) {
		switch num {
		case messageID:
			m.ID = s
		case messageChatID:
			m.ChatID = chat.ChatID(s)
		case messageSenderID:
			m.SenderID = s
		case messageText:
			m.Text = s
		case messageTranslatedText:
			m.TranslatedText = s
		case messageIsRead:
			m.IsRead = v != 0
		case messageCreatedAt:
			m.CreatedAt = time.Unix(0, int64(v)).UTC()
		}
	})
	return m, err
}

func encodeSession(s chat.Session) []byte {
	var b []byte
	b = appendString(b, sessionID, string(s.ID))
	b = appendString(b, sessionOrderID, string(s.OrderID))
	b = appendString(b, sessionCounterpartyID, string(s.CounterpartyID))
	b = appendTime(b, sessionCreatedAt, s.CreatedAt)
	b = appendBool(b, sessionTranslationEnabled, s.TranslationEnabled)
	return b
}

func decodeSession(b []byte) (chat.Session, error) {
	var s chat.Session
	err := consumeFields(b, func(num protowire.Number, str string, v uint64) {
		switch num {
		case sessionID:
			s.ID = chat.ChatID(str)
		case sessionOrderID:
			s.OrderID = chat.OrderID(str)
		case sessionCounterpartyID:
			s.CounterpartyID = chat.CounterpartyID(str)
		case sessionCreatedAt:
			s.CreatedAt = time.Unix(0, int64(v)).UTC()
		case sessionTranslationEnabled:
			s.TranslationEnabled = v != 0
		}
	})
	return s, err
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendTime(b []byte, num protowire.Number, t time.Time) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(t.UnixNano()))
}

// consumeFields walks a flat record. Strings and varints are handed to fn,
// unknown wire types are skipped.
func consumeFields(b []byte, fn func(num protowire.Number, s string, v uint64)) error {
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
			fn(num, s, 0)
			b = b[n:]
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("decode field %d: %w", num, protowire.ParseError(n))
			}
			fn(num, "", v)
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

// DecodeMessage reads a stored msg: value, for inspection tooling.
func DecodeMessage(b []byte) (chat.Message, error) {
	return decodeMessage(b)
}

// DecodeSession reads a stored chat: value, for inspection tooling.
func DecodeSession(b []byte) (chat.Session, error) {
	return decodeSession(b)
}
