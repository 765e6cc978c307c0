package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexyframe/artbot/core/telegram/sender"
	"github.com/flexyframe/artbot/internal/domain"
	"github.com/flexyframe/artbot/internal/views"
)

type sent struct {
	chatID int64
	text   string
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sent
	deleted map[int64][]int
	fail    map[int64]error
	nextID  int
}

func newFakeSender() *fakeSender {
	return &fakeSender{deleted: map[int64][]int{}, fail: map[int64]error{}}
}

func (f *fakeSender) Send(_ context.Context, chatID int64, v views.View) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[chatID]; err != nil {
		return 0, err
	}
	f.nextID++
	f.sent = append(f.sent, sent{chatID: chatID, text: v.Text})
	return f.nextID, nil
}

func (f *fakeSender) Delete(_ context.Context, chatID int64, msgID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted[chatID] = append(f.deleted[chatID], msgID)
	return nil
}

func (f *fakeSender) sentTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		if s.chatID == chatID {
			out = append(out, s.text)
		}
	}
	return out
}

type fakeRefs struct {
	mu      sync.Mutex
	user    map[int64]int
	admin   map[int64]int
	cleared []int64
}

func newFakeRefs() *fakeRefs {
	return &fakeRefs{user: map[int64]int{}, admin: map[int64]int{}}
}

func (r *fakeRefs) RecordMessageRefs(_ context.Context, id int64, u, a *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u != nil {
		r.user[id] = *u
	}
	if a != nil {
		r.admin[id] = *a
	}
	return nil
}

func (r *fakeRefs) ClearMessageRefs(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared = append(r.cleared, id)
	return nil
}

const adminChat = int64(-100)

func order() domain.Order {
	return domain.Order{ID: 4, Number: 9, UserID: 77, PaintingTitle: "Закат", Price: 4200, Status: domain.StatusNew}
}

func TestOrderCreatedRecordsRefs(t *testing.T) {
	s, refs := newFakeSender(), newFakeRefs()
	d := sender.NewDispatcher(sender.Options{Workers: 1, RetryBackoff: time.Millisecond})
	n := New(s, d, refs, adminChat)

	n.Notify(context.Background(), Event{Kind: OrderCreated, Order: order()})
	d.Close()

	assert.Len(t, s.sentTo(77), 1)
	assert.Len(t, s.sentTo(adminChat), 1)
	assert.NotZero(t, refs.user[4])
	assert.NotZero(t, refs.admin[4])
}

func TestExpiredSendsOncePerAudienceAndDropsStaleMessages(t *testing.T) {
	s, refs := newFakeSender(), newFakeRefs()
	d := sender.NewDispatcher(sender.Options{Workers: 2, RetryBackoff: time.Millisecond})
	n := New(s, d, refs, adminChat)

	o := order()
	o.Status = domain.StatusExpired
	o.UserMessageID, o.AdminMessageID = 11, 12
	n.Notify(context.Background(), Event{Kind: Expired, Order: o})
	d.Close()

	require.Len(t, s.sentTo(77), 1)
	require.Len(t, s.sentTo(adminChat), 1)
	assert.Contains(t, s.sentTo(77)[0], "Заказ #9")
	assert.Equal(t, []int{11}, s.deleted[77])
	assert.Equal(t, []int{12}, s.deleted[adminChat])
	assert.Equal(t, []int64{4}, refs.cleared)
}

func TestNoAdminChat(t *testing.T) {
	s := newFakeSender()
	n := New(s, nil, nil, 0)

	n.Notify(context.Background(), Event{Kind: Paid, Order: order()})
	n.Notify(context.Background(), Event{Kind: AwaitingCapture, Order: order()})

	assert.Len(t, s.sentTo(77), 1)
	assert.False(t, n.AdminConfigured())
}

func TestSendFailureIsSwallowed(t *testing.T) {
	s := newFakeSender()
	s.fail[77] = errors.New("Forbidden: bot was blocked by the user (403)")
	d := sender.NewDispatcher(sender.Options{Workers: 1, RetryBackoff: time.Millisecond})
	n := New(s, d, nil, adminChat)

	assert.NotPanics(t, func() {
		n.Notify(context.Background(), Event{Kind: Cancelled, Order: order()})
	})
	d.Close()

	assert.Empty(t, s.sentTo(77))
	assert.Len(t, s.sentTo(adminChat), 1)
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestCancelledContextDoesNotDropSends(t *testing.T) {
	s := newFakeSender()
	d := sender.NewDispatcher(sender.Options{Workers: 1, RetryBackoff: time.Millisecond})
	n := New(s, d, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	n.Notify(ctx, Event{Kind: StatusChanged, Order: order()})
	cancel()
	d.Close()

	assert.Len(t, s.sentTo(77), 1)
}

type fullQueue struct{}

func (fullQueue) Enqueue(context.Context, string, string, func() error) error {
	return sender.ErrQueueFull
}

func TestFullQueueDropsWithoutSendingInline(t *testing.T) {
	s := newFakeSender()
	n := New(s, fullQueue{}, nil, adminChat)

	n.Notify(context.Background(), Event{Kind: Expired, Order: order()})

	assert.Empty(t, s.sentTo(77))
	assert.Empty(t, s.sentTo(adminChat))
	assert.Equal(t, uint64(2), n.Dropped())
}

func TestClosedQueueDropsSends(t *testing.T) {
	s := newFakeSender()
	d := sender.NewDispatcher(sender.Options{Workers: 1})
	d.Close()
	n := New(s, d, nil, 0)

	n.Notify(context.Background(), Event{Kind: StatusChanged, Order: order()})

	assert.Empty(t, s.sentTo(77))
	assert.Equal(t, uint64(1), n.Dropped())
}
