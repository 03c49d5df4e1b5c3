package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle position of a load. Values are ordered; a load only
// ever moves forward.
type Status string

const (
	StatusOpen      Status = "open"
	StatusAccepted  Status = "accepted"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
)

var statusRank = map[Status]int{
	StatusOpen:      0,
	StatusAccepted:  1,
	StatusInTransit: 2,
	StatusDelivered: 3,
}

func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanAdvanceTo reports whether moving from s to next keeps the lifecycle
// monotonic. Staying in place is allowed.
func (s Status) CanAdvanceTo(next Status) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to >= from
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v := Status(raw)
	if !v.Valid() {
		return fmt.Errorf("unknown load status %q", raw)
	}
	*s = v
	return nil
}

// Load is a transportable shipment offer as served by the backend.
type Load struct {
	ID               string   `json:"id"`
	ProductName      string   `json:"product_name"`
	LoadingAddress   string   `json:"loading_address"`
	UnloadingAddress string   `json:"unloading_address"`
	VehicleType      string   `json:"vehicle_type,omitempty"`
	Amount           float64  `json:"amount"`
	Weight           *float64 `json:"weight,omitempty"`
	Dimensions       string   `json:"dimensions,omitempty"`
	DistanceKm       *float64 `json:"distance_km,omitempty"`
	Rating           *float64 `json:"rating,omitempty"`
	Status           Status   `json:"status"`
	VehicleAccepted  bool     `json:"vehicle_accepted"`
	VehicleLoaded    bool     `json:"vehicle_loaded"`
}

// Validate checks the invariants a decoded load must hold before it is
// admitted into the store.
func (l Load) Validate() error {
	var errs []error
	if l.ID == "" {
		errs = append(errs, errors.New("load id is empty"))
	}
	if !l.Status.Valid() {
		errs = append(errs, fmt.Errorf("load %q: invalid status %q", l.ID, l.Status))
	}
	if l.Amount < 0 {
		errs = append(errs, fmt.Errorf("load %q: negative amount %v", l.ID, l.Amount))
	}
	return errors.Join(errs...)
}

// Clone returns a copy that shares no pointers with l.
func (l Load) Clone() Load {
	l.Weight = clonePtr(l.Weight)
	l.DistanceKm = clonePtr(l.DistanceKm)
	l.Rating = clonePtr(l.Rating)
	return l
}

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// IsAcceptable is the single eligibility rule for accepting a load.
func IsAcceptable(l Load) bool {
	return l.Status == StatusOpen && !l.VehicleAccepted && !l.VehicleLoaded
}

// LoadPatch carries the only fields the core is allowed to change on a load.
type LoadPatch struct {
	Status          *Status
	VehicleAccepted *bool
}

// AcceptedPatch is the patch committed after a confirmed accept.
func AcceptedPatch() LoadPatch {
	s := StatusAccepted
	v := true
	return LoadPatch{Status: &s, VehicleAccepted: &v}
}

// Merge returns a copy of l with the patch applied. ok is false when the
// patch would move the status backward; l is then returned unchanged.
func (l Load) Merge(p LoadPatch) (Load, bool) {
	if p.Status != nil {
		if !l.Status.CanAdvanceTo(*p.Status) {
			return l, false
		}
		l.Status = *p.Status
	}
	if p.VehicleAccepted != nil {
		l.VehicleAccepted = *p.VehicleAccepted
	}
	return l, true
}

type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
)

// Notification is a transient toast shown to the operator.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"created_at"`
}

// LoadEvent is published when an accept attempt completes.
type LoadEvent struct {
	Type      string    `json:"type"`
	LoadID    string    `json:"load_id"`
	VehicleID string    `json:"vehicle_id"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

const (
	EventLoadAccepted     = "load.accepted"
	EventLoadAcceptFailed = "load.accept_failed"
)

// Float64 returns a pointer to v, for optional numeric fields.
func Float64(v float64) *float64 { return &v }
