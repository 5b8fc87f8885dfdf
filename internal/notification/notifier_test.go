package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	directoryrepo "measurehub_backend/internal/directory/repository"
	"measurehub_backend/internal/measurements/domain"
	"measurehub_backend/internal/orders"
	"measurehub_backend/internal/telegram"
	"measurehub_backend/platform/logger"
)

type fakeDirectory struct {
	users       map[int64]directoryrepo.User
	watchers    []directoryrepo.User
	watchersErr error
}

func (f *fakeDirectory) GetUser(_ context.Context, id int64) (directoryrepo.User, error) {
	user, ok := f.users[id]
	if !ok {
		return directoryrepo.User{}, errors.New("user not found")
	}
	return user, nil
}

func (f *fakeDirectory) Watchers(context.Context) ([]directoryrepo.User, error) {
	return f.watchers, f.watchersErr
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct {
	mu      sync.Mutex
	sends   []sentMessage
	failFor map[int64]error
	nextID  int64
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string) (telegram.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failFor[chatID]; ok {
		return telegram.Delivery{}, err
	}
	f.nextID++
	f.sends = append(f.sends, sentMessage{chatID: chatID, text: text})
	return telegram.Delivery{ChatID: chatID, MessageID: f.nextID}, nil
}

func (f *fakeSender) chatIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]int64, 0, len(f.sends))
	for _, s := range f.sends {
		ids = append(ids, s.chatID)
	}
	return ids
}

type fakeOrderSource struct {
	order *orders.Order
	calls int
}

func (f *fakeOrderSource) GetOrder(context.Context, string) (*orders.Order, error) {
	f.calls++
	return f.order, nil
}

func notifiableUser(id, chatID int64, role string) directoryrepo.User {
	chat := chatID
	return directoryrepo.User{
		ID:                   id,
		FullName:             fmt.Sprintf("User %d", id),
		Role:                 role,
		TelegramChatID:       &chat,
		IsActive:             true,
		NotificationsEnabled: true,
	}
}

func int64Ptr(v int64) *int64 { return &v }

func assignedJob(measurerID *int64) domain.Job {
	return domain.Job{
		ID:                 42,
		ExternalLeadID:     9001,
		Name:               "Kitchen remodel",
		ContactName:        "Jane Roe",
		ContactPhone:       "+31612345678",
		Address:            "Main St 1, Utrecht",
		Status:             domain.StatusAssigned,
		AssignedMeasurerID: measurerID,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}
}

func newTestNotifier(dir *fakeDirectory, sender *fakeSender, orderSource OrderSource) (*Notifier, *memoryStore) {
	store := newMemoryStore()
	dispatcher := newTestDispatcher(store, time.Second)
	return NewNotifier(dispatcher, dir, orderSource, sender, logger.New("development")), store
}

func statusByRecipient(results []Result) map[int64]DispatchStatus {
	byRecipient := make(map[int64]DispatchStatus, len(results))
	for _, r := range results {
		byRecipient[r.RecipientID] = r.Status
	}
	return byRecipient
}

func TestNotifyTransitionCreatedFansOutToMeasurerAndWatchers(t *testing.T) {
	dir := &fakeDirectory{
		users: map[int64]directoryrepo.User{
			7: notifiableUser(7, 77, "measurer"),
		},
		watchers: []directoryrepo.User{
			notifiableUser(1, 11, "admin"),
			notifiableUser(2, 22, "supervisor"),
		},
	}
	sender := &fakeSender{}
	notifier, _ := newTestNotifier(dir, sender, nil)

	results := notifier.NotifyTransition(context.Background(), Transition{
		Kind: domain.EventCreated,
		Job:  assignedJob(int64Ptr(7)),
	})

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for _, r := range results {
		if r.Status != StatusSent {
			t.Fatalf("recipient %d status = %q, want sent", r.RecipientID, r.Status)
		}
		if r.Type != TypeAssigned {
			t.Fatalf("recipient %d type = %q, want %q", r.RecipientID, r.Type, TypeAssigned)
		}
	}

	chats := sender.chatIDs()
	if len(chats) != 3 || chats[0] != 77 {
		t.Fatalf("sent chats = %v, want measurer chat 77 first of 3", chats)
	}

	if !strings.Contains(sender.sends[0].text, "assigned to you") {
		t.Fatalf("measurer text does not address the measurer: %q", sender.sends[0].text)
	}
	if !strings.Contains(sender.sends[1].text, "User 7") {
		t.Fatalf("watcher text does not name the measurer: %q", sender.sends[1].text)
	}
}

func TestNotifyTransitionUnassignedJobNotifiesWatchersOnly(t *testing.T) {
	dir := &fakeDirectory{
		users:    map[int64]directoryrepo.User{},
		watchers: []directoryrepo.User{notifiableUser(1, 11, "admin")},
	}
	sender := &fakeSender{}
	notifier, _ := newTestNotifier(dir, sender, nil)

	results := notifier.NotifyTransition(context.Background(), Transition{
		Kind: domain.EventCreated,
		Job:  assignedJob(nil),
	})

	if len(results) != 1 || results[0].RecipientID != 1 {
		t.Fatalf("results = %+v, want exactly the watcher", results)
	}
	if !strings.Contains(sender.sends[0].text, "unassigned, needs manual action") {
		t.Fatalf("watcher text does not flag the missing measurer: %q", sender.sends[0].text)
	}
}

func TestNotifyTransitionSkipsNonNotifiableRecipients(t *testing.T) {
	noChat := notifiableUser(7, 0, "measurer")
	noChat.TelegramChatID = nil

	inactive := notifiableUser(2, 22, "admin")
	inactive.IsActive = false

	optedOut := notifiableUser(3, 33, "supervisor")
	optedOut.NotificationsEnabled = false

	dir := &fakeDirectory{
		users:    map[int64]directoryrepo.User{7: noChat},
		watchers: []directoryrepo.User{inactive, optedOut, notifiableUser(4, 44, "admin")},
	}
	sender := &fakeSender{}
	notifier, _ := newTestNotifier(dir, sender, nil)

	results := notifier.NotifyTransition(context.Background(), Transition{
		Kind: domain.EventCreated,
		Job:  assignedJob(int64Ptr(7)),
	})

	if len(results) != 1 || results[0].RecipientID != 4 {
		t.Fatalf("results = %+v, want only the notifiable watcher", results)
	}
	if chats := sender.chatIDs(); len(chats) != 1 || chats[0] != 44 {
		t.Fatalf("sent chats = %v, want [44]", chats)
	}
}

func TestNotifyTransitionRepeatDispatchesNothingTwice(t *testing.T) {
	dir := &fakeDirectory{
		users:    map[int64]directoryrepo.User{7: notifiableUser(7, 77, "measurer")},
		watchers: []directoryrepo.User{notifiableUser(1, 11, "admin")},
	}
	sender := &fakeSender{}
	notifier, _ := newTestNotifier(dir, sender, nil)
	tr := Transition{Kind: domain.EventCreated, Job: assignedJob(int64Ptr(7))}

	notifier.NotifyTransition(context.Background(), tr)
	second := notifier.NotifyTransition(context.Background(), tr)

	for _, r := range second {
		if r.Status != StatusAlreadySent {
			t.Fatalf("recipient %d second status = %q, want already_sent", r.RecipientID, r.Status)
		}
	}
	if got := len(sender.sends); got != 2 {
		t.Fatalf("sender delivered %d messages across both runs, want 2", got)
	}
}

func TestNotifyTransitionFailedRecipientDoesNotBlockOthers(t *testing.T) {
	dir := &fakeDirectory{
		users: map[int64]directoryrepo.User{7: notifiableUser(7, 77, "measurer")},
		watchers: []directoryrepo.User{
			notifiableUser(1, 11, "admin"),
			notifiableUser(2, 22, "supervisor"),
		},
	}
	sender := &fakeSender{failFor: map[int64]error{22: errors.New("chat blocked")}}
	notifier, _ := newTestNotifier(dir, sender, nil)
	tr := Transition{Kind: domain.EventCreated, Job: assignedJob(int64Ptr(7))}

	first := statusByRecipient(notifier.NotifyTransition(context.Background(), tr))
	if first[7] != StatusSent || first[1] != StatusSent {
		t.Fatalf("healthy recipients = %v, want both sent", first)
	}
	if first[2] != StatusSendFailed {
		t.Fatalf("broken recipient status = %q, want send_failed", first[2])
	}

	// Retry reaches only the recipient that failed.
	sender.failFor = nil
	second := statusByRecipient(notifier.NotifyTransition(context.Background(), tr))
	if second[2] != StatusSent {
		t.Fatalf("retried recipient status = %q, want sent", second[2])
	}
	if second[7] != StatusAlreadySent || second[1] != StatusAlreadySent {
		t.Fatalf("already-delivered recipients = %v, want already_sent", second)
	}
	if got := len(sender.sends); got != 3 {
		t.Fatalf("sender delivered %d messages, want 3", got)
	}
}

func TestNotifyTransitionReassignedTellsPreviousMeasurer(t *testing.T) {
	dir := &fakeDirectory{
		users: map[int64]directoryrepo.User{
			9: notifiableUser(9, 99, "measurer"),
			7: notifiableUser(7, 77, "measurer"),
		},
		watchers: []directoryrepo.User{notifiableUser(1, 11, "admin")},
	}
	sender := &fakeSender{}
	notifier, _ := newTestNotifier(dir, sender, nil)

	results := notifier.NotifyTransition(context.Background(), Transition{
		Kind:               domain.EventReassigned,
		Job:                assignedJob(int64Ptr(9)),
		PreviousMeasurerID: int64Ptr(7),
	})

	statuses := statusByRecipient(results)
	if len(statuses) != 3 || statuses[9] != StatusSent || statuses[7] != StatusSent || statuses[1] != StatusSent {
		t.Fatalf("statuses = %v, want new measurer, previous measurer and watcher all sent", statuses)
	}

	var previousText string
	for _, s := range sender.sends {
		if s.chatID == 77 {
			previousText = s.text
		}
	}
	if !strings.Contains(previousText, "no longer yours") {
		t.Fatalf("previous measurer text = %q, want handover wording", previousText)
	}
}

func TestNotifyTransitionMeasurerWhoWatchesGetsOneMessage(t *testing.T) {
	measurer := notifiableUser(7, 77, "supervisor")
	dir := &fakeDirectory{
		users:    map[int64]directoryrepo.User{7: measurer},
		watchers: []directoryrepo.User{measurer, notifiableUser(1, 11, "admin")},
	}
	sender := &fakeSender{}
	notifier, _ := newTestNotifier(dir, sender, nil)

	results := notifier.NotifyTransition(context.Background(), Transition{
		Kind: domain.EventCreated,
		Job:  assignedJob(int64Ptr(7)),
	})

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (measurer deduplicated from watchers)", len(results))
	}
	var toMeasurer int
	for _, s := range sender.sends {
		if s.chatID == 77 {
			toMeasurer++
		}
	}
	if toMeasurer != 1 {
		t.Fatalf("measurer received %d messages, want 1", toMeasurer)
	}
}

func TestNotifyTransitionEnrichesMessageWithOrderDetails(t *testing.T) {
	dir := &fakeDirectory{
		users:    map[int64]directoryrepo.User{7: notifiableUser(7, 77, "measurer")},
		watchers: nil,
	}
	sender := &fakeSender{}
	orderSource := &fakeOrderSource{order: &orders.Order{Number: "A-100", ProductCount: 3, ProductArea: 12.5, Zone: "north"}}
	notifier, _ := newTestNotifier(dir, sender, orderSource)

	job := assignedJob(int64Ptr(7))
	code := "A-100"
	job.OrderCode = &code

	notifier.NotifyTransition(context.Background(), Transition{Kind: domain.EventCreated, Job: job})

	if orderSource.calls != 1 {
		t.Fatalf("order source called %d times, want 1", orderSource.calls)
	}
	text := sender.sends[0].text
	if !strings.Contains(text, "Order A-100") || !strings.Contains(text, "3 items") {
		t.Fatalf("message lacks order enrichment: %q", text)
	}
}

func TestNotifyEscalationReachesWatchersUnderOwnDedupKey(t *testing.T) {
	dir := &fakeDirectory{
		users:    map[int64]directoryrepo.User{},
		watchers: []directoryrepo.User{notifiableUser(1, 11, "admin")},
	}
	sender := &fakeSender{}
	notifier, _ := newTestNotifier(dir, sender, nil)
	job := assignedJob(nil)

	// Watcher already got the creation notice; the escalation must still land.
	notifier.NotifyTransition(context.Background(), Transition{Kind: domain.EventCreated, Job: job})
	results := notifier.NotifyEscalation(context.Background(), job)

	if len(results) != 1 || results[0].Status != StatusSent || results[0].Type != TypeEscalated {
		t.Fatalf("results = %+v, want one sent escalation", results)
	}
	if len(sender.sends) != 2 {
		t.Fatalf("sender delivered %d messages, want creation notice plus escalation", len(sender.sends))
	}
	if !strings.Contains(sender.sends[1].text, "still unassigned") {
		t.Fatalf("escalation text = %q", sender.sends[1].text)
	}

	// A second escalation for the same job deduplicates.
	again := notifier.NotifyEscalation(context.Background(), job)
	if len(again) != 1 || again[0].Status != StatusAlreadySent {
		t.Fatalf("repeat escalation = %+v, want already_sent", again)
	}
}

func TestNotifyTransitionWatcherLookupFailureStillNotifiesMeasurer(t *testing.T) {
	dir := &fakeDirectory{
		users:       map[int64]directoryrepo.User{7: notifiableUser(7, 77, "measurer")},
		watchersErr: errors.New("directory down"),
	}
	sender := &fakeSender{}
	notifier, _ := newTestNotifier(dir, sender, nil)

	results := notifier.NotifyTransition(context.Background(), Transition{
		Kind: domain.EventCreated,
		Job:  assignedJob(int64Ptr(7)),
	})

	if len(results) != 1 || results[0].RecipientID != 7 || results[0].Status != StatusSent {
		t.Fatalf("results = %+v, want the measurer dispatch to survive", results)
	}
}
