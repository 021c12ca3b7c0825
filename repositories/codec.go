package repositories

import (
	"chat-relay/domain"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the stored records. They follow the protobuf wire format so the
// values stay readable by any protobuf decoder.
const (
	messageFieldID         protowire.Number = 1
	messageFieldSender     protowire.Number = 2
	messageFieldReceiver   protowire.Number = 3
	messageFieldBody       protowire.Number = 4
	messageFieldTimestamp  protowire.Number = 5
	messageFieldVisibility protowire.Number = 6

	userFieldUsername     protowire.Number = 1
	userFieldPasswordHash protowire.Number = 2
	userFieldCreatedAt    protowire.Number = 3
)

func marshalMessage(m domain.Message) []byte {
	b := make([]byte, 0, 48+len(m.Sender)+len(m.Receiver)+len(m.Body))
	b = appendVarint(b, messageFieldID, m.ID)
	b = appendString(b, messageFieldSender, m.Sender)
	b = appendString(b, messageFieldReceiver, m.Receiver)
	b = appendString(b, messageFieldBody, m.Body)
	b = appendVarint(b, messageFieldTimestamp, uint64(m.Timestamp.UnixNano()))
	b = appendString(b, messageFieldVisibility, string(m.Visibility))
	return b
}

func unmarshalMessage(b []byte) (domain.Message, error) {
	var m domain.Message
	err := decodeFields(b,
		func(num protowire.Number, v uint64) {
			switch num {
			case messageFieldID:
				m.ID = v
			case messageFieldTimestamp:
				m.Timestamp = time.Unix(0, int64(v)).UTC()
			}
		},
		func(num protowire.Number, v string) {
			switch num {
			case messageFieldSender:
				m.Sender = v
			case messageFieldReceiver:
				m.Receiver = v
			case messageFieldBody:
				m.Body = v
			case messageFieldVisibility:
				m.Visibility = domain.Visibility(v)
			}
		})
	if err != nil {
		return domain.Message{}, err
	}
	return m, nil
}

func marshalUser(u User) []byte {
	b := make([]byte, 0, 16+len(u.Username)+len(u.PasswordHash))
	b = appendString(b, userFieldUsername, u.Username)
	b = appendString(b, userFieldPasswordHash, u.PasswordHash)
	b = appendVarint(b, userFieldCreatedAt, uint64(u.CreatedAt.Unix()))
	return b
}

func unmarshalUser(b []byte) (User, error) {
	var u User
	err := decodeFields(b,
		func(num protowire.Number, v uint64) {
			if num == userFieldCreatedAt {
				u.CreatedAt = time.Unix(int64(v), 0).UTC()
			}
		},
		func(num protowire.Number, v string) {
			switch num {
			case userFieldUsername:
				u.Username = v
			case userFieldPasswordHash:
				u.PasswordHash = v
			}
		})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// decodeFields walks a wire encoded record. Unknown field types are skipped so older
// binaries can read records written by newer ones.
func decodeFields(b []byte, onVarint func(protowire.Number, uint64), onString func(protowire.Number, string)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			onVarint(num, v)
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			onString(num, v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}
