package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gotd/td/bin"
	"github.com/gotd/td/clock"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/user/whoisscan/internal/session"
	"github.com/user/whoisscan/internal/source"
)

// fakeInvoker answers raw API calls from handle, keyed by call number.
type fakeInvoker struct {
	mu     sync.Mutex
	calls  []bin.Encoder
	handle func(n int, input bin.Encoder) (any, error)
}

func (f *fakeInvoker) Invoke(ctx context.Context, input bin.Encoder, output bin.Decoder) error {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, input)
	f.mu.Unlock()

	res, err := f.handle(n, input)
	if err != nil {
		return err
	}
	switch out := output.(type) {
	case *tg.MessagesDialogsBox:
		out.Dialogs = res.(tg.MessagesDialogsClass)
	case *tg.MessagesMessagesBox:
		out.Messages = res.(tg.MessagesMessagesClass)
	case *tg.ChannelsChannelParticipantsBox:
		out.ChannelParticipants = res.(tg.ChannelsChannelParticipantsClass)
	default:
		return fmt.Errorf("unexpected output %T", output)
	}
	return nil
}

func (f *fakeInvoker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// instantClock fires every timer at once.
type instantClock struct{}

func (instantClock) Now() time.Time { return time.Now() }

func (instantClock) Timer(time.Duration) clock.Timer {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return instantTimer{ch: ch}
}

func (instantClock) Ticker(d time.Duration) clock.Ticker { return clock.System.Ticker(d) }

type instantTimer struct{ ch chan time.Time }

func (t instantTimer) C() <-chan time.Time { return t.ch }
func (t instantTimer) Stop() bool          { return false }
func (t instantTimer) Reset(time.Duration) {}

func newFakeClient(inv *fakeInvoker) *Client {
	return &Client{
		api:       tg.NewClient(inv),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		peers:     newPeerCache(),
		floodWait: []tgerr.FloodWaitOption{tgerr.FloodWaitWithClock(instantClock{})},
	}
}

func dialogsPage(count int, channelIDs ...int64) *tg.MessagesDialogsSlice {
	page := &tg.MessagesDialogsSlice{Count: count}
	for _, id := range channelIDs {
		page.Dialogs = append(page.Dialogs, &tg.Dialog{Peer: &tg.PeerChannel{ChannelID: id}})
		page.Chats = append(page.Chats, &tg.Channel{ID: id, AccessHash: id * 10, Title: fmt.Sprintf("chat %d", id)})
	}
	return page
}

func channelRange(from, to int64) []int64 {
	var ids []int64
	for id := from; id <= to; id++ {
		ids = append(ids, id)
	}
	return ids
}

func TestResolveChat_PagesDialogs(t *testing.T) {
	inv := &fakeInvoker{handle: func(n int, input bin.Encoder) (any, error) {
		if n == 0 {
			return dialogsPage(300, channelRange(1, 100)...), nil
		}
		return dialogsPage(300, 500), nil
	}}
	c := newFakeClient(inv)

	ci, err := c.resolveChat(context.Background(), -1000000000500)
	if err != nil {
		t.Fatalf("resolveChat: %v", err)
	}
	if ci.id != 500 || ci.accessHash != 5000 {
		t.Errorf("unexpected chat %+v", ci)
	}
	if inv.count() != 2 {
		t.Fatalf("expected 2 dialog requests, got %d", inv.count())
	}

	second, ok := inv.calls[1].(*tg.MessagesGetDialogsRequest)
	if !ok {
		t.Fatalf("unexpected request %T", inv.calls[1])
	}
	peer, ok := second.OffsetPeer.(*tg.InputPeerChannel)
	if !ok || peer.ChannelID != 100 {
		t.Errorf("second page should continue after channel 100, got %#v", second.OffsetPeer)
	}
}

func TestResolveChat_NotFound(t *testing.T) {
	inv := &fakeInvoker{handle: func(n int, input bin.Encoder) (any, error) {
		if n == 0 {
			return dialogsPage(100, channelRange(1, 100)...), nil
		}
		return dialogsPage(100), nil
	}}
	c := newFakeClient(inv)

	_, err := c.resolveChat(context.Background(), -1000000000500)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func historyPage(fromID, n int) *tg.MessagesChannelMessages {
	page := &tg.MessagesChannelMessages{}
	for i := 0; i < n; i++ {
		page.Messages = append(page.Messages, &tg.Message{
			ID:      fromID - i,
			Message: "message",
			PeerID:  &tg.PeerChannel{ChannelID: 500},
		})
	}
	return page
}

func TestHistory_SleepsThroughFloodWait(t *testing.T) {
	inv := &fakeInvoker{handle: func(n int, input bin.Encoder) (any, error) {
		switch n {
		case 0:
			return historyPage(200, 100), nil
		case 1:
			return nil, tgerr.New(420, "FLOOD_WAIT_1")
		default:
			return historyPage(100, 30), nil
		}
	}}
	c := newFakeClient(inv)
	c.peers.addChats([]tg.ChatClass{&tg.Channel{ID: 500, AccessHash: 5000, Title: "Parents"}})

	src := source.NewLiveSource(c, func() session.State { return session.Authorized },
		source.LiveOptions{ChatID: -1000000000500}, c.logger)
	defer src.Close()

	yielded := 0
	for {
		_, ok, err := src.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		yielded++
	}
	if yielded != 130 {
		t.Errorf("expected 130 messages, got %d", yielded)
	}
	if inv.count() != 3 {
		t.Errorf("expected 3 history calls, got %d", inv.count())
	}
}

func TestHistory_OtherErrorsFail(t *testing.T) {
	inv := &fakeInvoker{handle: func(n int, input bin.Encoder) (any, error) {
		return nil, tgerr.New(400, "CHANNEL_PRIVATE")
	}}
	c := newFakeClient(inv)
	c.peers.addChats([]tg.ChatClass{&tg.Channel{ID: 500, AccessHash: 5000}})

	_, err := c.History(context.Background(), -1000000000500, 0, 100)
	if !tgerr.Is(err, "CHANNEL_PRIVATE") {
		t.Errorf("expected CHANNEL_PRIVATE, got %v", err)
	}
	if inv.count() != 1 {
		t.Errorf("non-flood errors must not be repeated, got %d calls", inv.count())
	}
}

func TestWithFloodWait_TooLong(t *testing.T) {
	inv := &fakeInvoker{}
	c := newFakeClient(inv)

	calls := 0
	err := c.withFloodWait(context.Background(), "test", func() error {
		calls++
		return tgerr.New(420, "FLOOD_WAIT_3600")
	})
	if _, ok := tgerr.AsFloodWait(err); !ok || calls != 1 {
		t.Errorf("hour-long waits should fail at once, got %v after %d calls", err, calls)
	}
}

func TestWithFloodWait_Cancelled(t *testing.T) {
	c := newFakeClient(&fakeInvoker{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The system clock would sleep a second; cancellation must win.
	c.floodWait = nil
	err := c.withFloodWait(ctx, "test", func() error {
		return tgerr.New(420, "FLOOD_WAIT_1")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
