package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/fleet-loads/internal/models"
	"github.com/example/fleet-loads/internal/observability"
)

// DisplayDuration is how long a notification stays up unless replaced or
// cleared.
const DisplayDuration = 2 * time.Second

// Timer is a pending auto-clear.
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d. The default uses time.AfterFunc.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type Option func(*Controller)

func WithScheduler(s Scheduler) Option { return func(c *Controller) { c.sched = s } }

func WithLogger(l *slog.Logger) Option { return func(c *Controller) { c.logger = l } }

func WithNow(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

// Controller holds at most one active notification. Listeners are called
// with the lock held and must not block or call back into the controller.
type Controller struct {
	mu        sync.Mutex
	current   *models.Notification
	timer     Timer
	gen       uint64
	listeners map[uint64]func(*models.Notification)
	nextID    uint64

	sched  Scheduler
	logger *slog.Logger
	now    func() time.Time
}

func New(opts ...Option) *Controller {
	c := &Controller{
		listeners: make(map[uint64]func(*models.Notification)),
		sched:     realScheduler{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Show replaces the active notification and restarts the auto-clear timer.
func (c *Controller) Show(n models.Notification) models.Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = c.now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.gen++
	gen := c.gen
	c.current = &n
	c.timer = c.sched.AfterFunc(DisplayDuration, func() { c.expire(gen) })
	observability.NotificationsShown.WithLabelValues(string(n.Type)).Inc()
	c.logger.Debug("notification shown", "id", n.ID, "type", n.Type)
	c.emitLocked()
	return n
}

func (c *Controller) Success(msg string) models.Notification {
	return c.Show(models.Notification{Type: models.NotificationSuccess, Message: msg})
}

func (c *Controller) Error(msg string) models.Notification {
	return c.Show(models.Notification{Type: models.NotificationError, Message: msg})
}

// Clear drops the active notification and cancels its timer.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.gen++
	if c.current == nil {
		return
	}
	c.current = nil
	c.emitLocked()
}

func (c *Controller) Current() (models.Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return models.Notification{}, false
	}
	return *c.current, true
}

// Subscribe registers fn for every change. The returned func unregisters it.
func (c *Controller) Subscribe(fn func(*models.Notification)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// expire may race with a newer Show that ran after this timer fired but
// before it took the lock; the generation check keeps the newer one.
func (c *Controller) expire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.current == nil {
		return
	}
	c.current = nil
	c.timer = nil
	c.emitLocked()
}

func (c *Controller) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) emitLocked() {
	var snap *models.Notification
	if c.current != nil {
		n := *c.current
		snap = &n
	}
	for _, fn := range c.listeners {
		fn(snap)
	}
}
