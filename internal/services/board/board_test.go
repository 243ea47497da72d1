package board

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"restaurant-system/internal/logger"
	"restaurant-system/internal/messaging"
	"restaurant-system/internal/models"
	"restaurant-system/internal/telemetry"
)

type statusUpdate struct {
	id     string
	status models.OrderStatus
}

type fakeAPI struct {
	mu      sync.Mutex
	fetch   func(ctx context.Context) ([]models.Order, error)
	depts   []models.Department
	updates []statusUpdate
}

func (f *fakeAPI) Orders(ctx context.Context) ([]models.Order, error) {
	return f.fetch(ctx)
}

func (f *fakeAPI) DepartmentOrders(ctx context.Context, dept models.Department) ([]models.Order, error) {
	f.mu.Lock()
	f.depts = append(f.depts, dept)
	f.mu.Unlock()
	return f.fetch(ctx)
}

func (f *fakeAPI) UpdateStatus(_ context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == models.StatusPending {
		return nil, errors.New("cannot change status from preparing to pending")
	}
	f.updates = append(f.updates, statusUpdate{id, status})
	return &models.Order{ID: id, TableNumber: 4, Status: status}, nil
}

func orders(ids ...string) []models.Order {
	out := make([]models.Order, len(ids))
	for i, id := range ids {
		out[i] = models.Order{
			ID:          id,
			TableNumber: i + 1,
			Status:      models.StatusPending,
			Items:       []models.OrderItem{{MenuItemID: "beef-burger", Name: "Beef Burger", Quantity: 2}},
		}
	}
	return out
}

func newTestBoard(api *fakeAPI, dept models.Department) *Board {
	return New(api, dept, time.Hour, telemetry.NewNopMetrics(), logger.NewNop())
}

func TestRefresh_KeepsPreviousListOnFailure(t *testing.T) {
	fail := false
	api := &fakeAPI{fetch: func(context.Context) ([]models.Order, error) {
		if fail {
			return nil, errors.New("connection refused")
		}
		return orders("a1", "b2"), nil
	}}
	b := newTestBoard(api, models.Kitchen)

	if err := b.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	fail = true
	if err := b.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}

	if got := b.Orders(); len(got) != 2 {
		t.Errorf("orders after failed refresh = %d, want previous 2", len(got))
	}
	if b.LastError() == nil {
		t.Error("LastError() = nil after failure")
	}
	if len(api.depts) != 2 || api.depts[0] != models.Kitchen {
		t.Errorf("department requests = %v", api.depts)
	}

	fail = false
	b.Refresh(context.Background())
	if b.LastError() != nil {
		t.Error("LastError() not cleared by a successful refresh")
	}
}

func TestRefresh_LaterPollSupersedes(t *testing.T) {
	entered := make(chan struct{})
	gate := make(chan struct{})
	var calls atomic.Int32

	api := &fakeAPI{fetch: func(context.Context) ([]models.Order, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-gate
			return orders("stale"), nil
		}
		return orders("fresh-1", "fresh-2"), nil
	}}
	b := newTestBoard(api, "")

	done := make(chan error, 1)
	go func() { done <- b.Refresh(context.Background()) }()
	<-entered

	if err := b.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	got := b.Orders()
	if len(got) != 2 || got[0].ID != "fresh-1" {
		t.Errorf("orders = %v, want the later poll's result", got)
	}
}

func TestAdvance(t *testing.T) {
	api := &fakeAPI{fetch: func(context.Context) ([]models.Order, error) { return orders("abcdef123456"), nil }}
	b := newTestBoard(api, models.Bar)
	b.Refresh(context.Background())

	order, err := b.Advance(context.Background(), "abcdef123456", models.StatusReady)
	if err != nil || order.Status != models.StatusReady {
		t.Fatalf("Advance() = %+v, %v", order, err)
	}
	select {
	case <-b.nudge:
	default:
		t.Error("Advance did not nudge the board")
	}

	if _, err := b.Advance(context.Background(), "abcdef123456", models.StatusPending); err == nil {
		t.Error("expected error from rejected update")
	}
}

func TestResolve(t *testing.T) {
	api := &fakeAPI{fetch: func(context.Context) ([]models.Order, error) {
		return orders("aaaa1111", "aaaa2222", "bbbb3333"), nil
	}}
	b := newTestBoard(api, "")
	b.Refresh(context.Background())

	tests := []struct {
		ref    string
		want   string
		wantOK bool
	}{
		{"1", "aaaa1111", true},
		{"3", "bbbb3333", true},
		{"bbbb", "bbbb3333", true},
		{"aaaa", "", false},
		{"9", "", false},
		{"zz", "", false},
	}
	for _, tt := range tests {
		got, ok := b.Resolve(tt.ref)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Resolve(%q) = %q, %v; want %q, %v", tt.ref, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestRender(t *testing.T) {
	api := &fakeAPI{fetch: func(context.Context) ([]models.Order, error) { return orders("0f8fad5b-d9cb"), nil }}
	b := newTestBoard(api, models.Kitchen)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	b.Refresh(context.Background())

	var buf bytes.Buffer
	if err := b.Render(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"KITCHEN orders (1)", "updated 12:00:00", "0f8fad5b", "pending", "2x Beef Burger"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q:\n%s", want, out)
		}
	}
}

func TestRun_RefreshesOnNudge(t *testing.T) {
	var calls atomic.Int32
	api := &fakeAPI{fetch: func(context.Context) ([]models.Order, error) {
		calls.Add(1)
		return orders("a"), nil
	}}
	b := newTestBoard(api, models.Kitchen)

	changed := make(chan struct{}, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, func() { changed <- struct{}{} }) }()

	<-changed
	b.Nudge()
	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("nudge did not trigger a refresh")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if calls.Load() < 2 {
		t.Errorf("fetch calls = %d, want at least 2", calls.Load())
	}
}

func TestFeed_NudgesForOwnDepartment(t *testing.T) {
	api := &fakeAPI{fetch: func(context.Context) ([]models.Order, error) { return nil, nil }}

	tests := []struct {
		name      string
		dept      models.Department
		body      string
		wantNudge bool
		wantErr   bool
	}{
		{"own ticket", models.Kitchen, `{"order_id":"o1","department":"kitchen"}`, true, false},
		{"other department", models.Kitchen, `{"order_id":"o1","department":"bar"}`, false, false},
		{"status update", models.Bar, `{"order_id":"o1","new_status":"ready"}`, true, false},
		{"all orders view", "", `{"order_id":"o1","department":"bar"}`, true, false},
		{"garbage", models.Kitchen, `{`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBoard(api, tt.dept)
			f := NewFeed(b, nil, logger.NewNop())

			err := f.handleMessage(context.Background(), []byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("handleMessage() error = %v", err)
			}
			nudged := len(b.nudge) == 1
			if nudged != tt.wantNudge {
				t.Errorf("nudged = %v, want %v", nudged, tt.wantNudge)
			}
		})
	}
}

func TestConsole(t *testing.T) {
	api := &fakeAPI{fetch: func(context.Context) ([]models.Order, error) { return orders("abcdef123456", "fedcba654321"), nil }}
	b := newTestBoard(api, models.Kitchen)
	var out bytes.Buffer
	c := NewConsole(b, &out)

	script := "refresh\nstart 1\nready fedc\nstatus 1 served\nstatus 1 cooking\nstart 9\nquit\nready 2\n"
	if err := c.Run(context.Background(), strings.NewReader(script)); err != nil {
		t.Fatal(err)
	}

	want := []statusUpdate{
		{"abcdef123456", models.StatusPreparing},
		{"fedcba654321", models.StatusReady},
		{"abcdef123456", models.StatusServed},
	}
	if len(api.updates) != len(want) {
		t.Fatalf("updates = %v, want %v", api.updates, want)
	}
	for i := range want {
		if api.updates[i] != want[i] {
			t.Errorf("update %d = %v, want %v", i, api.updates[i], want[i])
		}
	}

	got := out.String()
	for _, s := range []string{"is now preparing", "status must be one of", "no order 9 on the board"} {
		if !strings.Contains(got, s) {
			t.Errorf("output missing %q:\n%s", s, got)
		}
	}
}

type refusingSubscriber struct {
	attempts atomic.Int32
	closed   atomic.Bool
}

func (s *refusingSubscriber) StartConsuming(context.Context, messaging.MessageHandler) error {
	s.attempts.Add(1)
	return errors.New("failed to reconnect: dial tcp: connection refused")
}

func (s *refusingSubscriber) Close() error {
	s.closed.Store(true)
	return nil
}

func TestRun_KeepsPollingWhenFeedFails(t *testing.T) {
	var calls atomic.Int32
	api := &fakeAPI{fetch: func(context.Context) ([]models.Order, error) {
		calls.Add(1)
		return orders("a"), nil
	}}
	b := New(api, models.Kitchen, 5*time.Millisecond, telemetry.NewNopMetrics(), logger.NewNop())
	sub := &refusingSubscriber{}
	feed := NewFeed(b, sub, logger.NewNop())
	feed.retryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(gctx, nil) })
	g.Go(func() error { return feed.Start(gctx) })

	deadline := time.After(3 * time.Second)
	for sub.attempts.Load() < 3 || calls.Load() < 5 {
		select {
		case <-deadline:
			t.Fatalf("feed attempts = %d, polls = %d", sub.attempts.Load(), calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	if gctx.Err() != nil {
		t.Fatal("feed failure stopped the board")
	}

	cancel()
	if err := g.Wait(); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
	if !sub.closed.Load() {
		t.Error("subscriber not closed")
	}
}
