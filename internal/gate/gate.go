// Package gate implements the access-control state machine that
// decides, before any greeting body is fetched, whether a viewer may
// see it.
package gate

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"greetbox/api/internal/store"
)

// State of a single view session.
type State string

const (
	StateLoading      State = "loading"
	StateNotFound     State = "not_found"
	StateAwaitingCode State = "awaiting_code"
	StateGranted      State = "granted"
)

var (
	// ErrVerifyInFlight is returned when a code is submitted while a
	// previous verification has not completed. Attempts are rejected
	// rather than raced so late responses cannot flip state.
	ErrVerifyInFlight = errors.New("code verification already in flight")
	// ErrStoreUnavailable is returned when the content store did not
	// answer within the gate's timeout.
	ErrStoreUnavailable = errors.New("content store unavailable")
	// ErrNotAwaitingCode is returned when Submit is called in a state
	// that does not accept codes.
	ErrNotAwaitingCode = errors.New("gate is not awaiting a code")
)

// invalidCodeMessage is the inline error shown while the session stays
// in AwaitingCode. The viewer's input is kept for correction.
const invalidCodeMessage = "Invalid access code. Please try again."

// Store is the policy/content lookup surface the gate consumes. The
// policy query must not return content columns.
type Store interface {
	GetGreetingPolicy(ctx context.Context, id string) (store.GreetingPolicy, error)
	GetGreeting(ctx context.Context, id string) (store.Greeting, error)
	GetGreetingByCode(ctx context.Context, id, code string) (store.Greeting, error)
}

// Gate is the per-view-session state machine. Granted and NotFound are
// terminal; AwaitingCode accepts unlimited retries (no lockout).
type Gate struct {
	store   Store
	timeout time.Duration

	mu         sync.Mutex
	greetingID string
	state      State
	record     *store.Greeting
	message    string
	verifying  bool
}

// New returns a gate in Loading for the given greeting id. timeout
// bounds every store call; zero means 5s.
func New(s Store, greetingID string, timeout time.Duration) *Gate {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Gate{store: s, timeout: timeout, greetingID: greetingID, state: StateLoading}
}

// Load resolves the initial transition out of Loading. It queries
// policy metadata only; the full record is fetched solely for public
// greetings. Calling Load after the gate left Loading returns the
// current state unchanged.
func (g *Gate) Load(ctx context.Context) (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateLoading {
		return g.state, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	policy, err := g.store.GetGreetingPolicy(callCtx, g.greetingID)
	if errors.Is(err, sql.ErrNoRows) {
		g.state = StateNotFound
		return g.state, nil
	}
	if err != nil {
		return g.state, storeErr(err)
	}

	if policy.AccessType == store.AccessPrivate {
		g.state = StateAwaitingCode
		return g.state, nil
	}

	record, err := g.store.GetGreeting(callCtx, g.greetingID)
	if errors.Is(err, sql.ErrNoRows) {
		g.state = StateNotFound
		return g.state, nil
	}
	if err != nil {
		return g.state, storeErr(err)
	}

	g.record = &record
	g.state = StateGranted
	return g.state, nil
}

// Submit verifies an access code. On an exact match against the stored
// code the gate fetches the record and becomes Granted; otherwise it
// stays in AwaitingCode with an inline message. Only one verification
// may be outstanding at a time.
func (g *Gate) Submit(ctx context.Context, code string) (State, error) {
	g.mu.Lock()
	if g.state != StateAwaitingCode {
		state := g.state
		g.mu.Unlock()
		return state, ErrNotAwaitingCode
	}
	if g.verifying {
		g.mu.Unlock()
		return StateAwaitingCode, ErrVerifyInFlight
	}
	g.verifying = true
	greetingID := g.greetingID
	g.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	record, err := g.store.GetGreetingByCode(callCtx, greetingID, code)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifying = false

	if errors.Is(err, sql.ErrNoRows) {
		g.message = invalidCodeMessage
		return StateAwaitingCode, nil
	}
	if err != nil {
		return g.state, storeErr(err)
	}

	g.record = &record
	g.message = ""
	g.state = StateGranted
	return g.state, nil
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Record returns the full greeting once the gate is Granted.
func (g *Gate) Record() (store.Greeting, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateGranted || g.record == nil {
		return store.Greeting{}, false
	}
	return *g.record, true
}

// Message returns the inline error for the AwaitingCode state, empty
// when there is none.
func (g *Gate) Message() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.message
}

func storeErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrStoreUnavailable
	}
	return err
}
