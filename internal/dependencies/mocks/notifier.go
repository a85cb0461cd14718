package mocks

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/services/notify"
)

// MockNotifier records every notification instead of sending it
type MockNotifier struct {
	mu       sync.Mutex
	messages []notify.Message

	// Errors makes sends of the given kind fail
	Errors map[notify.Kind]error
}

// Ensure MockNotifier implements Notifier
var _ notify.Notifier = (*MockNotifier)(nil)

// NewMockNotifier creates a new MockNotifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{Errors: make(map[notify.Kind]error)}
}

// FailOn makes every send of kind return err
func (n *MockNotifier) FailOn(kind notify.Kind, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Errors[kind] = err
}

func (n *MockNotifier) SendConfirmation(_ context.Context, email string, accountID model.PlayerID, code string, expiration time.Time) error {
	return n.record(notify.Message{Kind: notify.KindConfirmation, Email: email, AccountID: accountID, Code: code, Expiration: expiration.Unix()})
}

func (n *MockNotifier) SendWelcome(_ context.Context, email string) error {
	return n.record(notify.Message{Kind: notify.KindWelcome, Email: email})
}

func (n *MockNotifier) SendTwoFactor(_ context.Context, email, code string, expiration time.Time) error {
	return n.record(notify.Message{Kind: notify.KindTwoFactor, Email: email, Code: code, Expiration: expiration.Unix()})
}

func (n *MockNotifier) SendReset(_ context.Context, email string, accountID model.PlayerID, code string, expiration time.Time) error {
	return n.record(notify.Message{Kind: notify.KindReset, Email: email, AccountID: accountID, Code: code, Expiration: expiration.Unix()})
}

func (n *MockNotifier) SendLoginNotification(_ context.Context, email, deviceType string) error {
	return n.record(notify.Message{Kind: notify.KindLogin, Email: email, Device: deviceType})
}

func (n *MockNotifier) record(msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.Errors[msg.Kind]; err != nil {
		return err
	}
	n.messages = append(n.messages, msg)
	return nil
}

// Messages returns the recorded messages, optionally filtered by kind
func (n *MockNotifier) Messages(kinds ...notify.Kind) []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Message
	for _, m := range n.messages {
		if len(kinds) == 0 || slices.Contains(kinds, m.Kind) {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the most recent message of kind, or false when none was sent
func (n *MockNotifier) Last(kind notify.Kind) (notify.Message, bool) {
	msgs := n.Messages(kind)
	if len(msgs) == 0 {
		return notify.Message{}, false
	}
	return msgs[len(msgs)-1], true
}

// Reset clears recorded messages
func (n *MockNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = nil
}

