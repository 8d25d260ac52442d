package payments

import (
	"context"
	"fmt"
	"sync"
)

// Mock is an in-process gateway for sandbox deployments and tests. It
// redirects the patient to a local payment page whose buttons settle or
// reject the session through the normal reconciliation path.
type Mock struct {
	publicBaseURL string

	mu       sync.Mutex
	sessions map[string]RegisterParams
	paid     map[string]bool
}

// NewMock creates the mock gateway. publicBaseURL is where this API is
// reachable from the patient's browser.
func NewMock(publicBaseURL string) *Mock {
	return &Mock{
		publicBaseURL: publicBaseURL,
		sessions:      make(map[string]RegisterParams),
		paid:          make(map[string]bool),
	}
}

func (g *Mock) Name() string { return "mock" }

func (g *Mock) Register(ctx context.Context, p RegisterParams) (*RegisterResult, error) {
	g.mu.Lock()
	g.sessions[p.SessionID] = p
	g.mu.Unlock()

	return &RegisterResult{
		RedirectURL: fmt.Sprintf("%s/payments/mock/%s", g.publicBaseURL, p.SessionID),
		OrderID:     "mock-" + p.SessionID,
	}, nil
}

func (g *Mock) Verify(ctx context.Context, p VerifyParams) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paid[p.SessionID] {
		return fmt.Errorf("payments: mock session %s not settled: %w", p.SessionID, ErrVerifyFailed)
	}
	return nil
}

// Session returns the registered parameters for a session id.
func (g *Mock) Session(id string) (RegisterParams, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.sessions[id]
	return p, ok
}

// Settle marks a session as paid so Verify accepts it.
func (g *Mock) Settle(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paid[id] = true
}
