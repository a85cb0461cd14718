package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/mcoot/playeraccounts/internal/model"
)

// Kind names a notification template
type Kind string

const (
	KindConfirmation Kind = "confirmation"
	KindWelcome      Kind = "welcome"
	KindTwoFactor    Kind = "2fa"
	KindReset        Kind = "reset"
	KindLogin        Kind = "notification"
)

// Message is a single notification to deliver
type Message struct {
	Kind       Kind           `json:"kind"`
	Email      string         `json:"email"`
	AccountID  model.PlayerID `json:"accountId,omitempty"`
	Code       string         `json:"code,omitempty"`
	Expiration int64          `json:"expiration,omitempty"`
	Device     string         `json:"device,omitempty"`
}

// Notifier sends account emails to players
type Notifier interface {
	SendConfirmation(ctx context.Context, email string, accountID model.PlayerID, code string, expiration time.Time) error
	SendWelcome(ctx context.Context, email string) error
	SendTwoFactor(ctx context.Context, email, code string, expiration time.Time) error
	SendReset(ctx context.Context, email string, accountID model.PlayerID, code string, expiration time.Time) error
	SendLoginNotification(ctx context.Context, email, deviceType string) error
}

// Sender delivers a Message over some transport
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Service turns Notifier calls into Messages for a Sender
type Service struct {
	sender Sender
}

var _ Notifier = (*Service)(nil)

// New creates a Service
func New(sender Sender) *Service {
	return &Service{sender: sender}
}

func (s *Service) SendConfirmation(ctx context.Context, email string, accountID model.PlayerID, code string, expiration time.Time) error {
	return s.send(ctx, Message{
		Kind:       KindConfirmation,
		Email:      email,
		AccountID:  accountID,
		Code:       code,
		Expiration: expiration.Unix(),
	})
}

func (s *Service) SendWelcome(ctx context.Context, email string) error {
	return s.send(ctx, Message{Kind: KindWelcome, Email: email})
}

func (s *Service) SendTwoFactor(ctx context.Context, email, code string, expiration time.Time) error {
	return s.send(ctx, Message{
		Kind:       KindTwoFactor,
		Email:      email,
		Code:       code,
		Expiration: expiration.Unix(),
	})
}

func (s *Service) SendReset(ctx context.Context, email string, accountID model.PlayerID, code string, expiration time.Time) error {
	return s.send(ctx, Message{
		Kind:       KindReset,
		Email:      email,
		AccountID:  accountID,
		Code:       code,
		Expiration: expiration.Unix(),
	})
}

func (s *Service) SendLoginNotification(ctx context.Context, email, deviceType string) error {
	return s.send(ctx, Message{Kind: KindLogin, Email: email, Device: deviceType})
}

func (s *Service) send(ctx context.Context, msg Message) error {
	if msg.Email == "" {
		return fmt.Errorf("cannot send %s notification: no email address", msg.Kind)
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send %s notification: %w", msg.Kind, err)
	}
	return nil
}
