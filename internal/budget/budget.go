// Package budget tracks per-credential request quotas for metered sources
// and rotates keys across runs so a burned credential never blocks a run.
package budget

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNoCredential is returned when every configured credential for a
// source is exhausted for the current period.
var ErrNoCredential = errors.New("all credentials exhausted")

// Credential is one API key with a monthly request quota.
type Credential struct {
	// Name identifies the key in logs and checkpoints; never the key
	// material itself.
	Name string
	// Key is the secret handed to the provider.
	Key string
	// Quota is the number of requests the key may spend per period.
	Quota int
	// Used counts requests spent in the current period.
	Used int
	// Exhausted is set when the provider answered 429 or the local
	// counter reached the quota. Cleared on period reset.
	Exhausted bool
}

// Remaining reports how many requests the credential may still spend.
func (c *Credential) Remaining() int {
	if c.Exhausted {
		return 0
	}
	if n := c.Quota - c.Used; n > 0 {
		return n
	}
	return 0
}

// Checkpointer persists credential usage between runs. The pipeline calls
// Load once at startup and Save after every run.
type Checkpointer interface {
	Load(ctx context.Context, source string) (map[string]State, error)
	Save(ctx context.Context, source string, states map[string]State) error
}

// State is the persisted slice of a credential.
type State struct {
	Used      int       `json:"used"`
	Exhausted bool      `json:"exhausted"`
	ResetAt   time.Time `json:"reset_at"`
}

// Manager owns the credentials of one metered source. All methods are safe
// for concurrent use, though the pipeline assigns one key per run and
// spends it from a single goroutine.
type Manager struct {
	mu     sync.Mutex
	source string
	creds  []*Credential
	cursor int
	ckpt   Checkpointer
	logger *zap.Logger
}

// NewManager builds a manager over the given credentials. A nil
// checkpointer disables persistence; usage then resets every process.
func NewManager(source string, creds []*Credential, ckpt Checkpointer, logger *zap.Logger) *Manager {
	return &Manager{
		source: source,
		creds:  creds,
		ckpt:   ckpt,
		logger: logger.Named("budget").With(zap.String("source", source)),
	}
}

// Restore merges persisted usage into the in-memory credentials. Keys
// absent from the checkpoint start fresh. Stale periods are reset.
func (m *Manager) Restore(ctx context.Context) error {
	if m.ckpt == nil {
		return nil
	}
	states, err := m.ckpt.Load(ctx, m.source)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, c := range m.creds {
		st, ok := states[c.Name]
		if !ok {
			continue
		}
		if !st.ResetAt.IsZero() && now.After(st.ResetAt) {
			m.logger.Info("credential period reset", zap.String("credential", c.Name))
			continue
		}
		c.Used = st.Used
		c.Exhausted = st.Exhausted
	}
	return nil
}

// Flush writes current usage through the checkpointer.
func (m *Manager) Flush(ctx context.Context) error {
	if m.ckpt == nil {
		return nil
	}
	m.mu.Lock()
	states := make(map[string]State, len(m.creds))
	reset := nextPeriodReset(time.Now())
	for _, c := range m.creds {
		states[c.Name] = State{Used: c.Used, Exhausted: c.Exhausted, ResetAt: reset}
	}
	m.mu.Unlock()
	return m.ckpt.Save(ctx, m.source, states)
}

// KeyForRun picks the credential for the next run, rotating round-robin
// over keys that still have quota.
func (m *Manager) KeyForRun() (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.creds)
	for i := 0; i < n; i++ {
		c := m.creds[(m.cursor+i)%n]
		if c.Remaining() > 0 {
			m.cursor = (m.cursor + i + 1) % n
			return c, nil
		}
	}
	return nil, ErrNoCredential
}

// Spend records requests against a credential and trips the exhausted
// flag when the quota is reached.
func (m *Manager) Spend(c *Credential, requests int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.Used += requests
	if c.Used >= c.Quota {
		c.Exhausted = true
		m.logger.Warn("credential quota reached", zap.String("credential", c.Name), zap.Int("used", c.Used))
	}
}

// MarkExhausted is called when the provider answered 429 regardless of the
// local counter. The key sits out until the next period reset.
func (m *Manager) MarkExhausted(c *Credential) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !c.Exhausted {
		c.Exhausted = true
		m.logger.Warn("credential marked exhausted by provider", zap.String("credential", c.Name))
	}
}

// nextPeriodReset returns the first instant of the next calendar month in
// UTC, which is when metered providers refill quotas.
func nextPeriodReset(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
