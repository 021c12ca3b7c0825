// Package wire holds the JSON envelopes exchanged on the realtime channel.
// Every frame is {"event": name, "data": payload} whatever the transport.
package wire

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"encoding/json"
	"fmt"
	"time"
)

const (
	EventRegisterUser     = "register_user"
	EventRegisterIdentity = "register_identity"
	EventSendMessage      = "send_message"
	EventReceiveMessage   = "receive_message"
)

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// SendMessage is the data of an inbound send_message event.
type SendMessage struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Message  string `json:"message"`
	Type     string `json:"type"`
}

// ReceiveMessage is the data of an outbound receive_message event.
type ReceiveMessage struct {
	ID        uint64    `json:"id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
}

// Inbound is a decoded client frame. Exactly one of Identity or Command is meaningful,
// depending on Event.
type Inbound struct {
	Event    string
	Identity string
	Command  domain.SendMessageCommand
}

// Decode parses a client frame. Unknown events are validation errors.
func Decode(frame []byte) (Inbound, error) {
	var envelope Envelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return Inbound{}, fmt.Errorf("%w: malformed frame: %w", errors.ErrValidation, err)
	}
	return DecodeEnvelope(envelope)
}

// DecodeEnvelope interprets an already parsed envelope.
func DecodeEnvelope(envelope Envelope) (Inbound, error) {
	switch envelope.Event {
	case EventRegisterUser, EventRegisterIdentity:
		var identity string
		if err := json.Unmarshal(envelope.Data, &identity); err != nil {
			return Inbound{}, fmt.Errorf("%w: identity must be a string: %w", errors.ErrValidation, err)
		}
		return Inbound{Event: EventRegisterUser, Identity: identity}, nil
	case EventSendMessage:
		var payload SendMessage
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return Inbound{}, fmt.Errorf("%w: malformed message: %w", errors.ErrValidation, err)
		}
		return Inbound{Event: EventSendMessage, Command: payload.ToCommand()}, nil
	default:
		return Inbound{}, fmt.Errorf("%w: unknown event %q", errors.ErrValidation, envelope.Event)
	}
}

func (p SendMessage) ToCommand() domain.SendMessageCommand {
	return domain.SendMessageCommand{
		Sender:     p.Sender,
		Receiver:   p.Receiver,
		Body:       p.Message,
		Visibility: domain.Visibility(p.Type),
	}
}

func ToReceiveMessage(msg domain.Message) ReceiveMessage {
	return ReceiveMessage{
		ID:        msg.ID,
		Sender:    msg.Sender,
		Receiver:  msg.Receiver,
		Message:   msg.Body,
		Timestamp: msg.Timestamp,
		Type:      string(msg.Visibility),
	}
}

func (r ReceiveMessage) ToMessage() domain.Message {
	return domain.Message{
		ID:         r.ID,
		Sender:     r.Sender,
		Receiver:   r.Receiver,
		Body:       r.Message,
		Timestamp:  r.Timestamp,
		Visibility: domain.Visibility(r.Type),
	}
}

func NewEnvelope(event string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: raw}, nil
}

// Encode wraps data into an envelope frame.
func Encode(event string, data any) ([]byte, error) {
	envelope, err := NewEnvelope(event, data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope)
}

// EncodeReceive builds the receive_message frame pushed to recipients.
func EncodeReceive(msg domain.Message) ([]byte, error) {
	return Encode(EventReceiveMessage, ToReceiveMessage(msg))
}
