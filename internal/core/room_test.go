package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/roomchat-server/internal/proto"
	"github.com/vovakirdan/roomchat-server/internal/store"
)

func TestTimestampsStrictlyIncreasingUnderFrozenClock(t *testing.T) {
	room := newTestRoom(nil)
	frozen := time.UnixMilli(1_700_000_000_000)
	freezeClock(room, frozen)

	alice, _ := attachNamed(t, room, "alice")
	_, bobConn := attachNamed(t, room, "bob")

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		room.HandleInbound(ctx, alice, chatPayload("burst"))
	}

	chats := bobConn.chats(t)
	if len(chats) != 5 {
		t.Fatalf("expected 5 chat payloads, got %d", len(chats))
	}
	prev := int64(0)
	for i, p := range chats {
		if p.Timestamp <= prev {
			t.Fatalf("timestamp %d at index %d not greater than previous %d", p.Timestamp, i, prev)
		}
		prev = p.Timestamp
	}

	// Clock regression must not regress timestamps.
	freezeClock(room, frozen.Add(-time.Minute))
	room.HandleInbound(ctx, alice, chatPayload("after regression"))
	chats = bobConn.chats(t)
	if last := chats[len(chats)-1].Timestamp; last <= prev {
		t.Fatalf("timestamp %d after clock regression not greater than %d", last, prev)
	}
}

func TestPendingBufferedUntilIdentity(t *testing.T) {
	room := newTestRoom(nil)
	ctx := context.Background()

	alice, _ := attachNamed(t, room, "alice")
	bob, bobConn := attach(t, room)

	room.HandleInbound(ctx, alice, chatPayload("hello?"))
	if len(bobConn.sent) != 0 {
		t.Fatalf("unannounced session received %d payloads directly", len(bobConn.sent))
	}

	room.HandleInbound(ctx, bob, identityPayload("bob"))

	payloads := bobConn.payloads(t)
	if len(payloads) != 4 {
		t.Fatalf("expected 4 payloads after identity, got %d: %+v", len(payloads), payloads)
	}
	if payloads[0].Joined != "alice" {
		t.Fatalf("expected queued join notice for alice first, got %+v", payloads[0])
	}
	if !payloads[1].IsChat() || payloads[1].Message != "hello?" {
		t.Fatalf("expected buffered chat second, got %+v", payloads[1])
	}
	if payloads[2].Joined != "bob" {
		t.Fatalf("expected own join broadcast third, got %+v", payloads[2])
	}
	if !payloads[3].Ready {
		t.Fatalf("expected ready signal last, got %+v", payloads[3])
	}
}

func TestBacklogReplayChronological(t *testing.T) {
	history := &memoryHistory{}
	room := newTestRoom(history)
	ctx := context.Background()

	for i := 0; i < 120; i++ {
		ts := int64(1000 + i)
		value := proto.Chat(proto.ChatRecord{Name: "old", Message: "m", Timestamp: ts})
		if err := history.Append(ctx, room.Key(), store.KeyForTimestamp(ts), value); err != nil {
			t.Fatalf("seed history: %v", err)
		}
	}

	bob, bobConn := attach(t, room)
	room.HandleInbound(ctx, bob, identityPayload("bob"))

	payloads := bobConn.payloads(t)
	// 100 backlog records, own join broadcast, ready.
	if len(payloads) != 102 {
		t.Fatalf("expected 102 payloads, got %d", len(payloads))
	}

	backlog := payloads[:100]
	prev := int64(0)
	for i, p := range backlog {
		if !p.IsChat() {
			t.Fatalf("backlog payload %d is not a chat record: %+v", i, p)
		}
		if p.Timestamp <= prev {
			t.Fatalf("backlog not chronological at %d: %d after %d", i, p.Timestamp, prev)
		}
		prev = p.Timestamp
	}
	if backlog[0].Timestamp != 1020 {
		t.Fatalf("expected oldest replayed record at ts 1020, got %d", backlog[0].Timestamp)
	}
	if backlog[99].Timestamp != 1119 {
		t.Fatalf("expected newest replayed record at ts 1119, got %d", backlog[99].Timestamp)
	}
}

func TestDeadSessionPrunedWithSingleDeparture(t *testing.T) {
	room := newTestRoom(nil)
	ctx := context.Background()

	alice, _ := attachNamed(t, room, "alice")
	bob, bobConn := attachNamed(t, room, "bob")
	_, carolConn := attachNamed(t, room, "carol")

	bobConn.fail = true
	room.HandleInbound(ctx, alice, chatPayload("are you there"))

	if got := carolConn.countQuit(t, "bob"); got != 1 {
		t.Fatalf("expected exactly one departure notice for bob, got %d", got)
	}
	chats := carolConn.chats(t)
	if len(chats) != 1 || chats[0].Message != "are you there" {
		t.Fatalf("carol should still receive the chat, got %+v", chats)
	}

	// The close handler firing later must not announce bob again.
	room.Detach(bob)
	if got := carolConn.countQuit(t, "bob"); got != 1 {
		t.Fatalf("departure announced again on detach, got %d notices", got)
	}

	// Bob is gone from the roster for the next broadcast.
	sentBefore := len(bobConn.sent)
	room.HandleInbound(ctx, alice, chatPayload("next"))
	if len(bobConn.sent) != sentBefore {
		t.Fatalf("pruned session still receiving broadcasts")
	}
	if got := len(carolConn.chats(t)); got != 2 {
		t.Fatalf("expected carol to have 2 chats, got %d", got)
	}
}

func TestNameTooLongRejected(t *testing.T) {
	room := newTestRoom(nil)
	ctx := context.Background()

	_, aliceConn := attachNamed(t, room, "alice")
	aliceSent := len(aliceConn.sent)

	bob, bobConn := attach(t, room)
	room.HandleInbound(ctx, bob, identityPayload(strings.Repeat("x", 33)))

	payloads := bobConn.payloads(t)
	if len(payloads) != 1 || payloads[0].Error == "" {
		t.Fatalf("expected a single error payload, got %+v", payloads)
	}
	if !bobConn.closed || bobConn.closeStatus != CloseStatusPolicyViolation {
		t.Fatalf("expected policy violation close, got closed=%v status=%d", bobConn.closed, bobConn.closeStatus)
	}
	// A session that never joined produces no announcements.
	if len(aliceConn.sent) != aliceSent {
		t.Fatalf("rejected session leaked %d payloads to the room", len(aliceConn.sent)-aliceSent)
	}
}

func TestMessageTooLongKeepsConnectionOpen(t *testing.T) {
	room := newTestRoom(nil)
	ctx := context.Background()

	alice, aliceConn := attachNamed(t, room, "alice")
	room.HandleInbound(ctx, alice, chatPayload(strings.Repeat("y", 257)))

	payloads := aliceConn.payloads(t)
	last := payloads[len(payloads)-1]
	if last.Error == "" {
		t.Fatalf("expected error payload, got %+v", last)
	}
	if aliceConn.closed {
		t.Fatal("oversized message must not close the connection")
	}

	// The connection stays usable.
	room.HandleInbound(ctx, alice, chatPayload("short one"))
	chats := aliceConn.chats(t)
	if len(chats) != 1 || chats[0].Message != "short one" {
		t.Fatalf("expected follow-up chat to go through, got %+v", chats)
	}
}

func TestMalformedPayloadReportedToSenderOnly(t *testing.T) {
	room := newTestRoom(nil)
	ctx := context.Background()

	alice, aliceConn := attachNamed(t, room, "alice")
	_, bobConn := attachNamed(t, room, "bob")
	bobSent := len(bobConn.sent)

	room.HandleInbound(ctx, alice, []byte("{not json"))

	payloads := aliceConn.payloads(t)
	if last := payloads[len(payloads)-1]; last.Error == "" {
		t.Fatalf("expected error payload, got %+v", last)
	}
	if aliceConn.closed {
		t.Fatal("malformed payload must not close the connection")
	}
	if len(bobConn.sent) != bobSent {
		t.Fatal("malformed payload leaked to other sessions")
	}
}

func TestDetachAnnouncesDepartureOnce(t *testing.T) {
	room := newTestRoom(nil)

	bob, _ := attachNamed(t, room, "bob")
	_, aliceConn := attachNamed(t, room, "alice")

	room.Detach(bob)
	room.Detach(bob)

	if got := aliceConn.countQuit(t, "bob"); got != 1 {
		t.Fatalf("expected exactly one departure notice, got %d", got)
	}
}

func TestAnonymousIdentityFallback(t *testing.T) {
	room := newTestRoom(nil)
	ctx := context.Background()

	_, aliceConn := attachNamed(t, room, "alice")

	bob, _ := attach(t, room)
	room.HandleInbound(ctx, bob, []byte(`{}`))

	if bob.Name() != AnonymousName {
		t.Fatalf("expected fallback name %q, got %q", AnonymousName, bob.Name())
	}
	payloads := aliceConn.payloads(t)
	if last := payloads[len(payloads)-1]; last.Joined != AnonymousName {
		t.Fatalf("expected join broadcast for %q, got %+v", AnonymousName, last)
	}
}

func TestHistoryFailureDoesNotBlockDelivery(t *testing.T) {
	history := &memoryHistory{failAppend: true}
	room := newTestRoom(history)
	ctx := context.Background()

	alice, _ := attachNamed(t, room, "alice")
	_, bobConn := attachNamed(t, room, "bob")

	room.HandleInbound(ctx, alice, chatPayload("live only"))

	chats := bobConn.chats(t)
	if len(chats) != 1 || chats[0].Message != "live only" {
		t.Fatalf("expected live delivery despite history failure, got %+v", chats)
	}
}

func TestAttachFailsWhenHistoryUnavailable(t *testing.T) {
	history := &memoryHistory{failList: true}
	room := newTestRoom(history)

	if _, err := room.Attach(context.Background(), &fakeConn{}); err == nil {
		t.Fatal("expected attach to fail when the history read fails")
	}
}

func TestChatRecordPersisted(t *testing.T) {
	history := &memoryHistory{}
	room := newTestRoom(history)
	ctx := context.Background()

	alice, _ := attachNamed(t, room, "alice")
	room.HandleInbound(ctx, alice, chatPayload("keep me"))

	// The write is asynchronous; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		history.mu.Lock()
		n := len(history.records)
		history.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("chat record was not persisted")
}
