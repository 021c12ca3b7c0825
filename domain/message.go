// Package domain contains core concepts of the chat system.
// This file defines Message records and their visibility rules.
// Messages are immutable once persisted by the store.
package domain

import (
	"time"
)

// BroadcastReceiver is the receiver stored on every public message.
const BroadcastReceiver = "all"

type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

func (v Visibility) IsValid() bool {
	return v == Public || v == Private
}

// Message represents an immutable chat record.
// ID and Timestamp are assigned by the store when left zero.
type Message struct {
	ID         uint64
	Sender     string
	Receiver   string
	Body       string
	Timestamp  time.Time
	Visibility Visibility
}

// IsBroadcastReceiver reports whether a receiver designates every connection.
// The empty value and "broadcast" are accepted as aliases of BroadcastReceiver.
func IsBroadcastReceiver(receiver string) bool {
	switch receiver {
	case "", BroadcastReceiver, "broadcast":
		return true
	default:
		return false
	}
}
