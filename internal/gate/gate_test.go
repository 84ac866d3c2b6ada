package gate

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"greetbox/api/internal/store"
)

type fakeStore struct {
	policyFn func(ctx context.Context, id string) (store.GreetingPolicy, error)
	getFn    func(ctx context.Context, id string) (store.Greeting, error)
	byCodeFn func(ctx context.Context, id, code string) (store.Greeting, error)

	policyCalls int
	getCalls    int
	byCodeCalls int
}

func (f *fakeStore) GetGreetingPolicy(ctx context.Context, id string) (store.GreetingPolicy, error) {
	f.policyCalls++
	if f.policyFn != nil {
		return f.policyFn(ctx, id)
	}
	return store.GreetingPolicy{}, sql.ErrNoRows
}

func (f *fakeStore) GetGreeting(ctx context.Context, id string) (store.Greeting, error) {
	f.getCalls++
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return store.Greeting{}, sql.ErrNoRows
}

func (f *fakeStore) GetGreetingByCode(ctx context.Context, id, code string) (store.Greeting, error) {
	f.byCodeCalls++
	if f.byCodeFn != nil {
		return f.byCodeFn(ctx, id, code)
	}
	return store.Greeting{}, sql.ErrNoRows
}

func publicStore(g store.Greeting) *fakeStore {
	return &fakeStore{
		policyFn: func(ctx context.Context, id string) (store.GreetingPolicy, error) {
			return store.GreetingPolicy{ID: g.ID, AccessType: store.AccessPublic}, nil
		},
		getFn: func(ctx context.Context, id string) (store.Greeting, error) {
			return g, nil
		},
	}
}

func privateStore(g store.Greeting) *fakeStore {
	return &fakeStore{
		policyFn: func(ctx context.Context, id string) (store.GreetingPolicy, error) {
			return store.GreetingPolicy{ID: g.ID, AccessType: store.AccessPrivate}, nil
		},
		byCodeFn: func(ctx context.Context, id, code string) (store.Greeting, error) {
			if code == g.AccessCode {
				return g, nil
			}
			return store.Greeting{}, sql.ErrNoRows
		},
	}
}

func TestLoadPublicGreeting(t *testing.T) {
	g := store.Greeting{ID: "g1", Title: "Happy Birthday", AccessType: store.AccessPublic}
	fs := publicStore(g)
	gt := New(fs, "g1", 0)

	if gt.State() != StateLoading {
		t.Fatalf("expected initial state loading, got %s", gt.State())
	}

	state, err := gt.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if state != StateGranted {
		t.Fatalf("expected granted, got %s", state)
	}

	record, ok := gt.Record()
	if !ok {
		t.Fatal("expected record after grant")
	}
	if record.Title != "Happy Birthday" {
		t.Errorf("unexpected record title %q", record.Title)
	}
}

func TestLoadPrivateFetchesPolicyOnly(t *testing.T) {
	g := store.Greeting{ID: "g1", AccessType: store.AccessPrivate, AccessCode: "123456"}
	fs := privateStore(g)
	gt := New(fs, "g1", 0)

	state, err := gt.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if state != StateAwaitingCode {
		t.Fatalf("expected awaiting_code, got %s", state)
	}
	if fs.getCalls != 0 {
		t.Errorf("full record fetched before code verification: %d calls", fs.getCalls)
	}
	if _, ok := gt.Record(); ok {
		t.Error("record exposed while awaiting code")
	}
}

func TestLoadNotFound(t *testing.T) {
	gt := New(&fakeStore{}, "missing", 0)

	state, err := gt.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if state != StateNotFound {
		t.Fatalf("expected not_found, got %s", state)
	}
}

func TestLoadIdempotentAfterResolve(t *testing.T) {
	g := store.Greeting{ID: "g1", AccessType: store.AccessPublic}
	fs := publicStore(g)
	gt := New(fs, "g1", 0)

	if _, err := gt.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := gt.Load(context.Background()); err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if fs.policyCalls != 1 {
		t.Errorf("expected 1 policy call, got %d", fs.policyCalls)
	}
}

func TestSubmitWrongThenRightCode(t *testing.T) {
	g := store.Greeting{ID: "g1", Title: "Secret", AccessType: store.AccessPrivate, AccessCode: "654321"}
	fs := privateStore(g)
	gt := New(fs, "g1", 0)

	if _, err := gt.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	state, err := gt.Submit(context.Background(), "000000")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if state != StateAwaitingCode {
		t.Fatalf("wrong code should keep awaiting_code, got %s", state)
	}
	if gt.Message() == "" {
		t.Error("expected inline message after wrong code")
	}

	state, err = gt.Submit(context.Background(), "654321")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if state != StateGranted {
		t.Fatalf("expected granted, got %s", state)
	}
	if gt.Message() != "" {
		t.Errorf("message should clear on grant, got %q", gt.Message())
	}
	record, ok := gt.Record()
	if !ok || record.Title != "Secret" {
		t.Errorf("expected full record after grant, got %+v ok=%v", record, ok)
	}
}

func TestSubmitOutsideAwaitingCode(t *testing.T) {
	g := store.Greeting{ID: "g1", AccessType: store.AccessPublic}
	gt := New(publicStore(g), "g1", 0)

	if _, err := gt.Submit(context.Background(), "123456"); !errors.Is(err, ErrNotAwaitingCode) {
		t.Errorf("expected ErrNotAwaitingCode before Load, got %v", err)
	}

	if _, err := gt.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := gt.Submit(context.Background(), "123456"); !errors.Is(err, ErrNotAwaitingCode) {
		t.Errorf("expected ErrNotAwaitingCode after grant, got %v", err)
	}
}

func TestSubmitSingleFlight(t *testing.T) {
	block := make(chan struct{})
	entered := make(chan struct{})
	fs := &fakeStore{
		policyFn: func(ctx context.Context, id string) (store.GreetingPolicy, error) {
			return store.GreetingPolicy{ID: id, AccessType: store.AccessPrivate}, nil
		},
		byCodeFn: func(ctx context.Context, id, code string) (store.Greeting, error) {
			close(entered)
			<-block
			return store.Greeting{ID: id}, nil
		},
	}
	gt := New(fs, "g1", time.Second)

	if _, err := gt.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := gt.Submit(context.Background(), "111111"); err != nil {
			t.Errorf("first Submit failed: %v", err)
		}
	}()

	<-entered
	if _, err := gt.Submit(context.Background(), "222222"); !errors.Is(err, ErrVerifyInFlight) {
		t.Errorf("expected ErrVerifyInFlight, got %v", err)
	}

	close(block)
	<-done

	if gt.State() != StateGranted {
		t.Errorf("expected granted after first verification, got %s", gt.State())
	}
}

func TestLoadStoreTimeout(t *testing.T) {
	fs := &fakeStore{
		policyFn: func(ctx context.Context, id string) (store.GreetingPolicy, error) {
			<-ctx.Done()
			return store.GreetingPolicy{}, ctx.Err()
		},
	}
	gt := New(fs, "g1", 10*time.Millisecond)

	_, err := gt.Load(context.Background())
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if gt.State() != StateLoading {
		t.Errorf("gate should stay in loading after store failure, got %s", gt.State())
	}
}
