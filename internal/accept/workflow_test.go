package accept

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/fleet-loads/internal/models"
	"github.com/example/fleet-loads/internal/storage"
)

type fakeBackend struct {
	err     error
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}

	mu       sync.Mutex
	vehicles []string
}

func (f *fakeBackend) AcceptLoad(ctx context.Context, loadID, vehicleID string) error {
	f.calls.Add(1)
	f.mu.Lock()
	f.vehicles = append(f.vehicles, vehicleID)
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.err
}

type fakeNotifier struct {
	mu    sync.Mutex
	shown []models.Notification
}

func (f *fakeNotifier) Success(msg string) models.Notification {
	return f.add(models.Notification{Type: models.NotificationSuccess, Message: msg})
}

func (f *fakeNotifier) Error(msg string) models.Notification {
	return f.add(models.Notification{Type: models.NotificationError, Message: msg})
}

func (f *fakeNotifier) add(n models.Notification) models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, n)
	return n
}

type staticLister struct{ loads []models.Load }

func (s staticLister) ListLoads(ctx context.Context) ([]models.Load, error) { return s.loads, nil }

type fakeGuard struct {
	err      error
	acquired []string
	released int
}

func (g *fakeGuard) Acquire(ctx context.Context, loadID string) (func(), error) {
	if g.err != nil {
		return nil, g.err
	}
	g.acquired = append(g.acquired, loadID)
	return func() { g.released++ }, nil
}

type fakePublisher struct {
	events []models.LoadEvent
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, evt models.LoadEvent) error {
	p.events = append(p.events, evt)
	return p.err
}

func fixture() []models.Load {
	return []models.Load{
		{ID: "1", ProductName: "Steel Coils", Status: models.StatusOpen, Amount: 420},
		{ID: "2", ProductName: "Electronics", Status: models.StatusAccepted, Amount: 780, VehicleAccepted: true},
		{ID: "3", ProductName: "Fruit", Status: models.StatusOpen, Amount: 90},
		{ID: "4", ProductName: "Sand", Status: models.StatusOpen, Amount: 10, VehicleLoaded: true},
	}
}

func newService(t *testing.T, b *fakeBackend) (*Service, *storage.LoadStore, *fakeNotifier) {
	t.Helper()
	st := storage.NewLoadStore(staticLister{loads: fixture()}, nil)
	require.NoError(t, st.Refresh(context.Background()))
	n := &fakeNotifier{}
	return &Service{Backend: b, Store: st, Notifier: n, VehicleID: "dummy"}, st, n
}

func TestAcceptSuccessCommits(t *testing.T) {
	b := &fakeBackend{}
	s, st, n := newService(t, b)
	load, _ := st.Get("1")

	outcome, err := s.Accept(context.Background(), load)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, outcome)
	assert.EqualValues(t, 1, b.calls.Load())
	assert.Equal(t, []string{"dummy"}, b.vehicles)

	got, _ := st.Get("1")
	assert.Equal(t, models.StatusAccepted, got.Status)
	assert.True(t, got.VehicleAccepted)

	want := fixture()
	current := st.Loads()
	for i := 1; i < len(want); i++ {
		assert.Equal(t, want[i], current[i])
	}

	require.Len(t, n.shown, 1)
	assert.Equal(t, models.NotificationSuccess, n.shown[0].Type)
	assert.Equal(t, MessageAccepted, n.shown[0].Message)
}

func TestAcceptFailureLeavesLoadUntouched(t *testing.T) {
	b := &fakeBackend{err: errors.New("502 bad gateway")}
	s, st, n := newService(t, b)
	load, _ := st.Get("1")

	outcome, err := s.Accept(context.Background(), load)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, b.err)
	assert.Equal(t, fixture(), st.Loads())

	require.Len(t, n.shown, 1)
	assert.Equal(t, models.NotificationError, n.shown[0].Type)
	assert.Equal(t, MessageFailed, n.shown[0].Message)

	// retry is allowed because nothing changed
	b.err = nil
	outcome, err = s.Accept(context.Background(), load)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, outcome)
	assert.EqualValues(t, 2, b.calls.Load())
}

func TestAcceptIneligibleIsInert(t *testing.T) {
	cases := []models.Load{
		fixture()[1],
		fixture()[3],
		{ID: "1", Status: models.StatusOpen, VehicleAccepted: true},
		{ID: "9", Status: models.StatusInTransit},
		{ID: "10", Status: models.StatusDelivered},
	}
	for _, load := range cases {
		b := &fakeBackend{}
		s, st, n := newService(t, b)
		outcome, err := s.Accept(context.Background(), load)
		require.NoError(t, err)
		assert.Equal(t, OutcomeIneligible, outcome, load.ID)
		assert.Zero(t, b.calls.Load())
		assert.Empty(t, n.shown)
		assert.Equal(t, fixture(), st.Loads())
	}
}

func TestAcceptStaleSnapshotIsInert(t *testing.T) {
	b := &fakeBackend{}
	s, st, _ := newService(t, b)
	stale, _ := st.Get("1")
	require.True(t, st.Apply("1", models.AcceptedPatch()))

	outcome, err := s.Accept(context.Background(), stale)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIneligible, outcome)
	assert.Zero(t, b.calls.Load())
}

func TestAcceptSameLoadConcurrentlyCallsBackendOnce(t *testing.T) {
	b := &fakeBackend{entered: make(chan struct{}, 4), release: make(chan struct{})}
	s, st, n := newService(t, b)
	load, _ := st.Get("1")

	var wg sync.WaitGroup
	outcomes := make([]Outcome, 3)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], _ = s.Accept(context.Background(), load)
		}(i)
	}
	<-b.entered
	time.Sleep(50 * time.Millisecond)
	close(b.release)
	wg.Wait()

	assert.EqualValues(t, 1, b.calls.Load())
	accepted := 0
	for _, o := range outcomes {
		require.Contains(t, []Outcome{OutcomeAccepted, OutcomeIneligible}, o)
		if o == OutcomeAccepted {
			accepted++
		}
	}
	assert.GreaterOrEqual(t, accepted, 1)
	assert.Len(t, n.shown, 1)
}

func TestAcceptSurvivesLeaderCancellation(t *testing.T) {
	b := &fakeBackend{entered: make(chan struct{}, 1), release: make(chan struct{})}
	s, st, n := newService(t, b)
	load, _ := st.Get("1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Outcome, 1)
	go func() {
		o, _ := s.Accept(ctx, load)
		done <- o
	}()
	<-b.entered
	cancel()
	close(b.release)

	assert.Equal(t, OutcomeAccepted, <-done)
	got, _ := st.Get("1")
	assert.Equal(t, models.StatusAccepted, got.Status)
	require.Len(t, n.shown, 1)
	assert.Equal(t, MessageAccepted, n.shown[0].Message)
}

func TestAcceptDifferentLoadsIndependent(t *testing.T) {
	b := &fakeBackend{entered: make(chan struct{}, 2), release: make(chan struct{})}
	s, st, _ := newService(t, b)
	one, _ := st.Get("1")
	three, _ := st.Get("3")

	var wg sync.WaitGroup
	for _, l := range []models.Load{one, three} {
		wg.Add(1)
		go func(l models.Load) {
			defer wg.Done()
			o, err := s.Accept(context.Background(), l)
			assert.NoError(t, err)
			assert.Equal(t, OutcomeAccepted, o)
		}(l)
	}
	// both must be in the backend at once
	<-b.entered
	<-b.entered
	close(b.release)
	wg.Wait()

	assert.EqualValues(t, 2, b.calls.Load())
	for _, id := range []string{"1", "3"} {
		got, _ := st.Get(id)
		assert.Equal(t, models.StatusAccepted, got.Status)
	}
}

func TestAcceptGuardBusy(t *testing.T) {
	b := &fakeBackend{}
	s, st, n := newService(t, b)
	s.Guard = &fakeGuard{err: ErrBusy}
	load, _ := st.Get("1")

	outcome, err := s.Accept(context.Background(), load)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInFlight, outcome)
	assert.Zero(t, b.calls.Load())
	assert.Empty(t, n.shown)
}

func TestAcceptGuardUnavailableProceeds(t *testing.T) {
	b := &fakeBackend{}
	s, st, _ := newService(t, b)
	s.Guard = &fakeGuard{err: errors.New("redis down")}
	load, _ := st.Get("1")

	outcome, _ := s.Accept(context.Background(), load)
	assert.Equal(t, OutcomeAccepted, outcome)
}

func TestAcceptGuardReleased(t *testing.T) {
	b := &fakeBackend{err: errors.New("timeout")}
	s, st, _ := newService(t, b)
	g := &fakeGuard{}
	s.Guard = g
	load, _ := st.Get("3")

	_, _ = s.Accept(context.Background(), load)
	assert.Equal(t, []string{"3"}, g.acquired)
	assert.Equal(t, 1, g.released)
}

func TestAcceptPublishesEvents(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := &fakeBackend{}
	s, st, _ := newService(t, b)
	p := &fakePublisher{err: errors.New("broker gone")}
	s.Events = p
	s.Now = func() time.Time { return at }
	one, _ := st.Get("1")
	three, _ := st.Get("3")

	outcome, _ := s.Accept(context.Background(), one)
	assert.Equal(t, OutcomeAccepted, outcome, "publish errors must not change the outcome")

	b.err = errors.New("nope")
	_, _ = s.Accept(context.Background(), three)

	require.Len(t, p.events, 2)
	assert.Equal(t, models.LoadEvent{Type: models.EventLoadAccepted, LoadID: "1", VehicleID: "dummy", At: at}, p.events[0])
	assert.Equal(t, models.EventLoadAcceptFailed, p.events[1].Type)
	assert.Equal(t, "nope", p.events[1].Error)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "accepted", OutcomeAccepted.String())
	assert.Equal(t, "in_flight", OutcomeInFlight.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
