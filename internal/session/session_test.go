package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/cartsync"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

type savedCall struct {
	userID string
	state  cart.State
}

// stubSyncer serves remote carts per user. A user listed in gates blocks its
// load until the gate channel is closed.
type stubSyncer struct {
	mu      sync.Mutex
	remote  map[string][]cart.Line
	gates   map[string]chan struct{}
	started chan string
	loads   []string
	saves   []savedCall
}

func newStubSyncer() *stubSyncer {
	return &stubSyncer{
		remote:  map[string][]cart.Line{},
		gates:   map[string]chan struct{}{},
		started: make(chan string, 8),
	}
}

func (s *stubSyncer) LoadForUser(ctx context.Context, userID string) cartsync.LoadResult {
	s.mu.Lock()
	s.loads = append(s.loads, userID)
	gate := s.gates[userID]
	lines := s.remote[userID]
	s.mu.Unlock()

	s.started <- userID
	if gate != nil {
		<-gate
	}
	if len(lines) == 0 {
		return cartsync.LoadResult{Lines: []cart.Line{}, Outcome: cartsync.OutcomeEmpty}
	}
	return cartsync.LoadResult{Lines: lines, Outcome: cartsync.OutcomeLoaded}
}

func (s *stubSyncer) SaveForUser(ctx context.Context, userID string, state cart.State) cartsync.SaveResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if userID == "" {
		return cartsync.SaveResult{Outcome: cartsync.OutcomeSkippedNoUser}
	}
	s.saves = append(s.saves, savedCall{userID: userID, state: state})
	return cartsync.SaveResult{Outcome: cartsync.OutcomeUpdated}
}

func (s *stubSyncer) saveCalls() []savedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]savedCall(nil), s.saves...)
}

func widget(qty int) []cart.Line {
	return []cart.Line{{ProductID: "A", Title: "Widget", Price: decimal.NewFromInt(10), Quantity: qty}}
}

func gadget(qty int) []cart.Line {
	return []cart.Line{{ProductID: "B", Title: "Gadget", Price: decimal.NewFromInt(3), Quantity: qty}}
}

func userX() *auth.Identity { return &auth.Identity{ID: "user-x", Email: "x@example.com"} }
func userY() *auth.Identity { return &auth.Identity{ID: "user-y", Email: "y@example.com"} }

func newTestSession(syncer Syncer, loadWait time.Duration) *Session {
	return newSession("sess-1", syncer, nil, loadWait, time.Now())
}

func TestStaleLoadDoesNotOverwriteNewIdentity(t *testing.T) {
	syncer := newStubSyncer()
	syncer.remote["user-x"] = widget(2)
	syncer.remote["user-y"] = gadget(1)
	gateX := make(chan struct{})
	syncer.gates["user-x"] = gateX
	sess := newTestSession(syncer, 0)

	done := make(chan cartsync.LoadResult)
	go func() {
		done <- sess.SetIdentity(context.Background(), userX())
	}()
	if got := <-syncer.started; got != "user-x" {
		t.Fatalf("expected load for user-x first, got %s", got)
	}

	resY := sess.SetIdentity(context.Background(), userY())
	<-syncer.started
	if resY.Outcome != cartsync.OutcomeLoaded {
		t.Fatalf("expected Y load to apply, got %s", resY.Outcome)
	}

	close(gateX)
	<-done

	state := sess.Snapshot()
	if len(state.Lines) != 1 || state.Lines[0].ProductID != "B" {
		t.Fatalf("expected Y's cart to survive the late X load, got %+v", state.Lines)
	}
	if tag := sess.Tag(); tag.UserID != "user-y" || tag.Generation != 2 {
		t.Fatalf("unexpected tag %+v", tag)
	}
	if len(syncer.saveCalls()) != 0 {
		t.Fatalf("loading must not write remotely")
	}
}

func TestMutationWaitsForPendingLoadBeforeWriting(t *testing.T) {
	syncer := newStubSyncer()
	syncer.remote["user-x"] = widget(2)
	gate := make(chan struct{})
	syncer.gates["user-x"] = gate
	sess := newTestSession(syncer, 0)

	loaded := make(chan struct{})
	go func() {
		sess.SetIdentity(context.Background(), userX())
		close(loaded)
	}()
	<-syncer.started

	mutated := make(chan MutationResult)
	go func() {
		res, err := sess.Add(context.Background(), "B", "Gadget", decimal.NewFromInt(3), 1)
		if err != nil {
			t.Errorf("add: %v", err)
		}
		mutated <- res
	}()

	select {
	case <-mutated:
		t.Fatalf("mutation completed before the load resolved")
	case <-time.After(30 * time.Millisecond):
	}
	if n := len(syncer.saveCalls()); n != 0 {
		t.Fatalf("expected no remote write before load, got %d", n)
	}

	close(gate)
	<-loaded
	res := <-mutated

	if len(res.State.Lines) != 2 || !res.State.TotalPrice.Equal(decimal.NewFromInt(23)) {
		t.Fatalf("expected remote lines plus the new one, got %+v", res.State)
	}
	saves := syncer.saveCalls()
	if len(saves) != 1 || saves[0].userID != "user-x" || len(saves[0].state.Lines) != 2 {
		t.Fatalf("unexpected saves %+v", saves)
	}
}

func TestMutationGivesUpWhenLoadOutlastsWait(t *testing.T) {
	syncer := newStubSyncer()
	gate := make(chan struct{})
	syncer.gates["user-x"] = gate
	sess := newTestSession(syncer, 10*time.Millisecond)

	go sess.SetIdentity(context.Background(), userX())
	<-syncer.started
	defer close(gate)

	_, err := sess.Add(context.Background(), "A", "Widget", decimal.NewFromInt(10), 1)
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(syncer.saveCalls()) != 0 {
		t.Fatalf("expected no save")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, _, err := sess.Current(ctx); err == nil {
		t.Fatalf("expected cancelled context to abort the wait")
	}
}

func TestAnonymousMutationsStayLocal(t *testing.T) {
	syncer := newStubSyncer()
	sess := newTestSession(syncer, 0)

	res, err := sess.Add(context.Background(), "A", "Widget", decimal.NewFromInt(10), 2)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if res.Sync.Outcome != cartsync.OutcomeSkippedNoUser {
		t.Fatalf("expected skipped_no_user, got %s", res.Sync.Outcome)
	}
	if _, err := sess.Add(context.Background(), "A", "Widget", decimal.NewFromInt(10), 0); err == nil {
		t.Fatalf("expected invalid quantity error")
	}
	if !sess.Snapshot().TotalPrice.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("rejected add must not change the cart")
	}
}

func TestLoginReplacesAnonymousCartAndLogoutClears(t *testing.T) {
	syncer := newStubSyncer()
	syncer.remote["user-x"] = gadget(4)
	sess := newTestSession(syncer, 0)

	_, _ = sess.Add(context.Background(), "A", "Widget", decimal.NewFromInt(10), 1)
	sess.SetIdentity(context.Background(), userX())
	<-syncer.started

	state := sess.Snapshot()
	if len(state.Lines) != 1 || state.Lines[0].ProductID != "B" || state.Lines[0].Quantity != 4 {
		t.Fatalf("expected remote cart after login, got %+v", state.Lines)
	}

	sess.SetIdentity(context.Background(), userX())
	if len(syncer.loads) != 1 {
		t.Fatalf("same identity should not reload, loads=%v", syncer.loads)
	}

	sess.SetIdentity(context.Background(), nil)
	if !sess.Snapshot().IsEmpty() || sess.Identity() != nil {
		t.Fatalf("expected empty anonymous cart after logout")
	}
	if len(syncer.saveCalls()) != 0 {
		t.Fatalf("identity changes must not write remotely")
	}
}

func TestSavesFollowMutationOrder(t *testing.T) {
	syncer := newStubSyncer()
	sess := newTestSession(syncer, 0)
	sess.SetIdentity(context.Background(), userX())
	<-syncer.started

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := sess.Add(context.Background(), "A", "Widget", decimal.NewFromInt(1), 1); err != nil {
				t.Errorf("add: %v", err)
			}
		}()
	}
	wg.Wait()

	saves := syncer.saveCalls()
	if len(saves) != 20 {
		t.Fatalf("expected 20 saves, got %d", len(saves))
	}
	for i, call := range saves {
		if got := call.state.Lines[0].Quantity; got != i+1 {
			t.Fatalf("save %d carried quantity %d; saves out of order", i, got)
		}
	}
}

func TestCurrentAndClearAndSync(t *testing.T) {
	syncer := newStubSyncer()
	syncer.remote["user-x"] = widget(2)
	sess := newTestSession(syncer, 0)
	sess.SetIdentity(context.Background(), userX())
	<-syncer.started

	state, identity, tag, err := sess.Current(context.Background())
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if tag != sess.Tag() || tag.UserID != "user-x" {
		t.Fatalf("unexpected tag %+v", tag)
	}
	if identity == nil || identity.ID != "user-x" || len(state.Lines) != 1 {
		t.Fatalf("unexpected current state %+v identity %+v", state, identity)
	}
	identity.ID = "mutated"
	if sess.Identity().ID != "user-x" {
		t.Fatalf("identity must be returned as a copy")
	}

	cleared, res, err := sess.ClearAndSync(context.Background(), tag)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !cleared.IsEmpty() || res.Outcome != cartsync.OutcomeUpdated {
		t.Fatalf("unexpected clear result %+v %+v", cleared, res)
	}
	saves := syncer.saveCalls()
	if len(saves) != 1 || !saves[0].state.IsEmpty() {
		t.Fatalf("expected one empty snapshot save, got %+v", saves)
	}
}

func TestClearAndSyncSkipsAfterIdentitySwitch(t *testing.T) {
	syncer := newStubSyncer()
	syncer.remote["user-x"] = widget(2)
	syncer.remote["user-y"] = widget(5)
	sess := newTestSession(syncer, 0)
	ctx := context.Background()

	sess.SetIdentity(ctx, userX())
	<-syncer.started
	_, _, tag, err := sess.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}

	sess.SetIdentity(ctx, userY())
	<-syncer.started

	state, res, err := sess.ClearAndSync(ctx, tag)
	if !errors.Is(err, ErrIdentityChanged) {
		t.Fatalf("expected identity changed, got %v", err)
	}
	if res.Outcome != "" {
		t.Fatalf("expected no save, got %+v", res)
	}
	if len(state.Lines) != 1 || state.Lines[0].Quantity != 5 {
		t.Fatalf("user-y cart must be kept, got %+v", state)
	}
	if saves := syncer.saveCalls(); len(saves) != 0 {
		t.Fatalf("expected no saves, got %+v", saves)
	}
}
