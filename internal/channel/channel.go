// Package channel holds the delivery adapters the notification dispatcher fans out to.
package channel

import (
	"context"
	"errors"
)

const (
	NameEmail    = "email"
	NamePush     = "push"
	NameWhatsApp = "whatsapp"
)

// ErrNoAddress means the recipient has nothing this channel can deliver to.
var ErrNoAddress = errors.New("recipient has no address for channel")

type Recipient struct {
	TenantID  int32
	Name      string
	Email     string
	Phone     string
	PushToken string
}

type Message struct {
	Title string
	Body  string
	Type  string
}

type Channel interface {
	Name() string
	// CanDeliver reports whether the recipient carries an address for this channel.
	CanDeliver(r Recipient) bool
	Send(ctx context.Context, r Recipient, msg Message) error
}
