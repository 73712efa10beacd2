package services

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// NotificationKind names the e-mail flow a notification triggers.
type NotificationKind string

const (
	NotificationOrderCreated NotificationKind = "order_created"
	NotificationOrderShipped NotificationKind = "order_shipped"
)

// Notification is the message the order lifecycle enqueues. It carries
// everything needed to render the e-mails except the operator roster,
// which is resolved when the notification is delivered.
type Notification struct {
	Kind              NotificationKind `json:"kind"`
	OrderID           uint             `json:"order_id"`
	Number            int              `json:"number"`
	Year              int              `json:"year"`
	ClientEmail       string           `json:"client_email"`
	BusinessName      string           `json:"business_name,omitempty"`
	OperatorFirstName string           `json:"operator_first_name,omitempty"`
	OperatorLastName  string           `json:"operator_last_name,omitempty"`
}

// Notifier is the outbound queue. Enqueue must not wait for delivery.
type Notifier interface {
	Enqueue(ctx context.Context, n Notification) error
}

// NotificationHandler delivers one notification.
type NotificationHandler interface {
	Handle(ctx context.Context, n Notification) error
}

var (
	ErrQueueFull   = errors.New("notification queue is full")
	ErrQueueClosed = errors.New("notification queue is closed")
)

// ChannelQueue is an in-process Notifier backed by a buffered channel and a worker pool.
type ChannelQueue struct {
	jobs    chan Notification
	handler NotificationHandler
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewChannelQueue(handler NotificationHandler, size int, logger *zap.Logger) *ChannelQueue {
	if size <= 0 {
		size = 100
	}
	return &ChannelQueue{
		jobs:    make(chan Notification, size),
		handler: handler,
		logger:  logger.With(zap.String("component", "notification_queue")),
	}
}

// Start launches the workers. They drain the queue until Close is called.
func (q *ChannelQueue) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for n := range q.jobs {
				if err := q.handler.Handle(ctx, n); err != nil {
					q.logger.Error("notification delivery failed",
						zap.String("kind", string(n.Kind)),
						zap.Uint("order_id", n.OrderID),
						zap.Error(err),
					)
				}
			}
		}()
	}
}

func (q *ChannelQueue) Enqueue(ctx context.Context, n Notification) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting notifications and waits for the workers to finish the backlog.
func (q *ChannelQueue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	q.wg.Wait()
}

// RecordingNotifier records enqueued notifications for testing
type RecordingNotifier struct {
	mu            sync.Mutex
	notifications []Notification

	// Err, when set, is returned by Enqueue and nothing is recorded.
	Err error
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (r *RecordingNotifier) Enqueue(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}
	r.notifications = append(r.notifications, n)
	return nil
}

// Notifications returns a copy of everything enqueued so far.
func (r *RecordingNotifier) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Notification, len(r.notifications))
	copy(out, r.notifications)
	return out
}
