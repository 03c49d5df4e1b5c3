package accept

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/example/fleet-loads/internal/models"
	"github.com/example/fleet-loads/internal/observability"
)

const (
	MessageAccepted = "Load accepted"
	MessageFailed   = "Failed to accept"
)

// ErrBusy is what a Guard returns when another process holds the load.
var ErrBusy = errors.New("accept already in flight")

type Outcome int

const (
	OutcomeIneligible Outcome = iota
	OutcomeInFlight
	OutcomeAccepted
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIneligible:
		return "ineligible"
	case OutcomeInFlight:
		return "in_flight"
	case OutcomeAccepted:
		return "accepted"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Backend interface {
	AcceptLoad(ctx context.Context, loadID, vehicleID string) error
}

type Store interface {
	Get(id string) (models.Load, bool)
	Apply(id string, patch models.LoadPatch) bool
}

type Notifier interface {
	Success(msg string) models.Notification
	Error(msg string) models.Notification
}

// Guard locks a load across processes. Acquire returns ErrBusy (or an error
// wrapping it) when the load is taken.
type Guard interface {
	Acquire(ctx context.Context, loadID string) (release func(), err error)
}

type Publisher interface {
	Publish(ctx context.Context, evt models.LoadEvent) error
}

// Service runs the accept workflow. Guard and Events are optional.
type Service struct {
	Backend   Backend
	Store     Store
	Notifier  Notifier
	Guard     Guard
	Events    Publisher
	VehicleID string
	Logger    *slog.Logger
	Now       func() time.Time

	inflight singleflight.Group
}

type result struct {
	outcome Outcome
	err     error
}

// Accept commits load to the configured vehicle. The store is only changed
// after the backend confirms. Ineligible loads are a silent no-op, and
// concurrent calls for the same id share a single backend call and outcome.
func (s *Service) Accept(ctx context.Context, load models.Load) (Outcome, error) {
	if !s.eligible(load) {
		observability.AcceptTotal.WithLabelValues(OutcomeIneligible.String()).Inc()
		return OutcomeIneligible, nil
	}

	// the flight is shared, so one caller going away must not fail the rest;
	// the backend client's own timeout still bounds it
	flightCtx := context.WithoutCancel(ctx)
	v, _, shared := s.inflight.Do(load.ID, func() (any, error) {
		return s.run(flightCtx, load), nil
	})
	r := v.(result)
	if shared {
		s.logger().Debug("accept coalesced", "load_id", load.ID, "outcome", r.outcome.String())
	}
	return r.outcome, r.err
}

// eligible checks the caller's copy and, when the store knows the load, the
// current one too, since the caller may be holding a stale snapshot.
func (s *Service) eligible(load models.Load) bool {
	if !models.IsAcceptable(load) {
		return false
	}
	if cur, ok := s.Store.Get(load.ID); ok && !models.IsAcceptable(cur) {
		return false
	}
	return true
}

func (s *Service) run(ctx context.Context, load models.Load) result {
	log := s.logger().With("load_id", load.ID, "vehicle_id", s.VehicleID)

	// re-check inside the flight: a previous flight may have just committed
	if !s.eligible(load) {
		observability.AcceptTotal.WithLabelValues(OutcomeIneligible.String()).Inc()
		return result{outcome: OutcomeIneligible}
	}

	if s.Guard != nil {
		release, err := s.Guard.Acquire(ctx, load.ID)
		switch {
		case errors.Is(err, ErrBusy):
			log.Info("accept refused, load locked elsewhere")
			observability.AcceptTotal.WithLabelValues(OutcomeInFlight.String()).Inc()
			return result{outcome: OutcomeInFlight}
		case err != nil:
			// the in-process flight still dedupes; proceed without the lock
			log.Warn("accept guard unavailable", "error", err)
		default:
			defer release()
		}
	}

	if err := s.Backend.AcceptLoad(ctx, load.ID, s.VehicleID); err != nil {
		log.Error("accept failed", "error", err)
		s.Notifier.Error(MessageFailed)
		s.publish(models.LoadEvent{Type: models.EventLoadAcceptFailed, LoadID: load.ID, VehicleID: s.VehicleID, Error: err.Error()})
		observability.AcceptTotal.WithLabelValues(OutcomeFailed.String()).Inc()
		return result{outcome: OutcomeFailed, err: err}
	}

	if !s.Store.Apply(load.ID, models.AcceptedPatch()) {
		log.Warn("accepted load not present in store")
	}
	s.Notifier.Success(MessageAccepted)
	s.publish(models.LoadEvent{Type: models.EventLoadAccepted, LoadID: load.ID, VehicleID: s.VehicleID})
	observability.AcceptTotal.WithLabelValues(OutcomeAccepted.String()).Inc()
	log.Info("load accepted")
	return result{outcome: OutcomeAccepted}
}

// publish is best-effort; the outcome is already committed.
func (s *Service) publish(evt models.LoadEvent) {
	if s.Events == nil {
		return
	}
	evt.At = s.now()
	if err := s.Events.Publish(context.Background(), evt); err != nil {
		s.logger().Warn("publish load event failed", "type", evt.Type, "load_id", evt.LoadID, "error", err)
	}
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
