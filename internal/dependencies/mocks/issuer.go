package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/mcoot/playeraccounts/internal/services/token"
)

// MockIssuer returns predictable tokens of the form "token:<account>:<n>"
type MockIssuer struct {
	mu       sync.Mutex
	requests []token.Request

	// Err, when set, is returned from every Issue call
	Err error
	// OnIssue, when set, runs at the start of every Issue call
	OnIssue func(ctx context.Context, req token.Request)
}

// Ensure MockIssuer implements Issuer
var _ token.Issuer = (*MockIssuer)(nil)

// NewMockIssuer creates a new MockIssuer
func NewMockIssuer() *MockIssuer {
	return &MockIssuer{}
}

func (i *MockIssuer) Issue(ctx context.Context, req token.Request) (string, error) {
	i.mu.Lock()
	hook := i.OnIssue
	i.mu.Unlock()
	if hook != nil {
		hook(ctx, req)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.Err != nil {
		return "", i.Err
	}
	i.requests = append(i.requests, req)
	return fmt.Sprintf("token:%s:%d", req.AccountID, len(i.requests)), nil
}

// Requests returns every successful request
func (i *MockIssuer) Requests() []token.Request {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]token.Request(nil), i.requests...)
}
