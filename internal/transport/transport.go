// Package transport delivers bot events and accepts outbound replies.
// The rest of the service depends only on the Transport interface; the
// concrete messaging system behind it is interchangeable.
package transport

import "context"

// Update is one inbound event: a text message or a button callback.
type Update struct {
	ID           int64
	ChatID       int64
	FromID       int64
	Username     string
	Text         string
	CallbackID   string
	CallbackData string
}

// IsCallback reports whether the update is a button press rather than a
// message.
func (u Update) IsCallback() bool {
	return u.CallbackID != ""
}

// Button is one inline keyboard button.
type Button struct {
	Text         string
	CallbackData string
}

// Message is one outbound reply, optionally with inline buttons
// arranged in rows.
type Message struct {
	ChatID  int64
	Text    string
	Buttons [][]Button
}

// Transport is the bot's event source and reply sink.
type Transport interface {
	// Updates returns a channel of inbound events. The channel closes
	// when ctx is canceled.
	Updates(ctx context.Context) <-chan Update
	// Send delivers one outbound message.
	Send(ctx context.Context, msg Message) error
	// AnswerCallback acknowledges a button press.
	AnswerCallback(ctx context.Context, callbackID, text string) error
}
