package domain

import (
	"time"
)

// SendMessageCommand is the intent carried by an inbound send_message event.
// Sender is asserted by the payload, not by the connection.
type SendMessageCommand struct {
	Sender     string     `validate:"required"`
	Receiver   string     `validate:"required_if=Visibility private"`
	Body       string     `validate:"required"`
	Visibility Visibility `validate:"required,oneof=public private"`
	Timestamp  time.Time
}

// ToMessage builds the record to persist, keeping receiver and visibility consistent:
// public messages always carry BroadcastReceiver.
func (c SendMessageCommand) ToMessage() Message {
	receiver := c.Receiver
	if c.Visibility == Public {
		receiver = BroadcastReceiver
	}
	return Message{
		Sender:     c.Sender,
		Receiver:   receiver,
		Body:       c.Body,
		Timestamp:  c.Timestamp,
		Visibility: c.Visibility,
	}
}

// ConnectionState is the lifecycle position of one connection.
type ConnectionState int

const (
	Connected ConnectionState = iota
	Registered
	Closed
)

func (s ConnectionState) String() string {
	switch s {
	case Connected:
		return "connected"
	case Registered:
		return "registered"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// DispatchResult reports the outcome of a dispatched message.
// RoutingMiss is set when a private receiver had no live connection.
type DispatchResult struct {
	Message     Message
	Delivered   int
	RoutingMiss bool
}
