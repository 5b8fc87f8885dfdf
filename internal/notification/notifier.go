package notification

import (
	"context"
	"time"

	directoryrepo "measurehub_backend/internal/directory/repository"
	"measurehub_backend/internal/measurements/domain"
	"measurehub_backend/internal/orders"
	"measurehub_backend/internal/telegram"
	"measurehub_backend/platform/logger"
)

// enrichTimeout bounds the order lookup while building message content.
// Enrichment must never hold up a transition.
const enrichTimeout = 3 * time.Second

// DirectorySource is what the notifier needs from the measurer directory.
type DirectorySource interface {
	GetUser(ctx context.Context, id int64) (directoryrepo.User, error)
	Watchers(ctx context.Context) ([]directoryrepo.User, error)
}

// OrderSource enriches messages with order details.
type OrderSource interface {
	GetOrder(ctx context.Context, code string) (*orders.Order, error)
}

// MessageSender is the chat transport.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) (telegram.Delivery, error)
}

// Transition is one accepted job event the notifier fans out.
type Transition struct {
	Kind               domain.EventKind
	Job                domain.Job
	PreviousMeasurerID *int64
}

// Notifier renders and fans out notifications for job transitions: one
// dispatch per recipient, deduplicated by the dispatcher.
type Notifier struct {
	dispatcher *Dispatcher
	directory  DirectorySource
	orders     OrderSource
	sender     MessageSender
	log        *logger.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(dispatcher *Dispatcher, directory DirectorySource, orderSource OrderSource, sender MessageSender, log *logger.Logger) *Notifier {
	return &Notifier{
		dispatcher: dispatcher,
		directory:  directory,
		orders:     orderSource,
		sender:     sender,
		log:        log,
	}
}

// NotifyTransition dispatches the transition's notification to the assigned
// measurer (and, on reassignment, the previous one) plus all watchers. It
// returns one result per attempted dispatch; infrastructure errors are folded
// into send_failed results so one broken recipient never hides the others.
func (n *Notifier) NotifyTransition(ctx context.Context, t Transition) []Result {
	notificationType := TypeFor(t.Kind)
	order := n.enrich(ctx, t.Job)

	results := make([]Result, 0, 4)
	notified := make(map[int64]bool)

	if t.Job.AssignedMeasurerID != nil {
		measurerID := *t.Job.AssignedMeasurerID
		if user, ok := n.recipient(ctx, measurerID); ok {
			text := renderForMeasurer(t.Kind, t.Job, order)
			results = append(results, n.dispatch(ctx, t.Job.ID, notificationType, user, text))
		}
		notified[measurerID] = true
	}

	if t.Kind == domain.EventReassigned && t.PreviousMeasurerID != nil && !notified[*t.PreviousMeasurerID] {
		if user, ok := n.recipient(ctx, *t.PreviousMeasurerID); ok {
			text := renderForPreviousMeasurer(t.Job)
			results = append(results, n.dispatch(ctx, t.Job.ID, notificationType, user, text))
		}
		notified[*t.PreviousMeasurerID] = true
	}

	watchers, err := n.directory.Watchers(ctx)
	if err != nil {
		n.log.Error("watcher lookup failed, watchers not notified", "measurementId", t.Job.ID, "error", err.Error())
		return results
	}

	measurerName := n.measurerName(ctx, t.Job.AssignedMeasurerID)
	for _, w := range watchers {
		if notified[w.ID] {
			continue
		}
		text := renderForWatcher(t.Kind, t.Job, order, measurerName)
		results = append(results, n.dispatch(ctx, t.Job.ID, notificationType, w, text))
		notified[w.ID] = true
	}

	return results
}

// NotifyEscalation warns every watcher that a job is still unassigned. It
// dispatches under the escalated type, a separate dedup key from the
// creation notice, so each stuck job raises exactly one escalation per
// watcher.
func (n *Notifier) NotifyEscalation(ctx context.Context, job domain.Job) []Result {
	order := n.enrich(ctx, job)

	watchers, err := n.directory.Watchers(ctx)
	if err != nil {
		n.log.Error("watcher lookup failed, escalation not delivered", "measurementId", job.ID, "error", err.Error())
		return nil
	}

	text := renderEscalation(job, order)
	results := make([]Result, 0, len(watchers))
	for _, w := range watchers {
		results = append(results, n.dispatch(ctx, job.ID, TypeEscalated, w, text))
	}
	return results
}

// recipient loads a user and checks it can actually be notified: active,
// opted in, chat bound. Anyone else is skipped with a log line, not a result.
func (n *Notifier) recipient(ctx context.Context, userID int64) (directoryrepo.User, bool) {
	user, err := n.directory.GetUser(ctx, userID)
	if err != nil {
		n.log.Error("recipient lookup failed", "userId", userID, "error", err.Error())
		return directoryrepo.User{}, false
	}
	if !user.IsActive || !user.NotificationsEnabled || user.TelegramChatID == nil {
		n.log.Info("recipient not notifiable, skipping", "userId", userID)
		return directoryrepo.User{}, false
	}
	return user, true
}

func (n *Notifier) dispatch(ctx context.Context, measurementID int64, notificationType string, user directoryrepo.User, text string) Result {
	chatID := *user.TelegramChatID
	send := func(sendCtx context.Context) (telegram.Delivery, error) {
		return n.sender.SendMessage(sendCtx, chatID, text)
	}

	result, err := n.dispatcher.Dispatch(ctx, measurementID, notificationType, user.ID, send)
	if err != nil {
		n.log.Error("notification dispatch error", "measurementId", measurementID,
			"type", notificationType, "recipientId", user.ID, "error", err.Error())
		if result.Status == "" {
			result.Status = StatusSendFailed
			result.Error = err.Error()
		}
	}
	return result
}

// enrich fetches order details with a short deadline. Failures log and the
// message goes out without enrichment.
func (n *Notifier) enrich(ctx context.Context, job domain.Job) *orders.Order {
	if n.orders == nil || job.OrderCode == nil || *job.OrderCode == "" {
		return nil
	}

	enrichCtx, cancel := context.WithTimeout(ctx, enrichTimeout)
	defer cancel()

	order, err := n.orders.GetOrder(enrichCtx, *job.OrderCode)
	if err != nil {
		n.log.Warn("order enrichment failed, sending without it", "orderCode", *job.OrderCode, "error", err.Error())
		return nil
	}
	return order
}

func (n *Notifier) measurerName(ctx context.Context, measurerID *int64) string {
	if measurerID == nil {
		return ""
	}
	user, err := n.directory.GetUser(ctx, *measurerID)
	if err != nil {
		return ""
	}
	return user.FullName
}
