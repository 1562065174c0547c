package bus

import (
	"testing"
	"time"
)

func TestPublish_DeliversInSubscriptionOrder(t *testing.T) {
	b := New()

	var order []int
	Subscribe(b, func(InputReceived) { order = append(order, 1) })
	Subscribe(b, func(InputReceived) { order = append(order, 2) })
	Subscribe(b, func(InputReceived) { order = append(order, 3) })

	b.Publish(InputReceived{SessionID: "s", Message: "hi", Timestamp: time.Now()})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("delivery order = %v, want [1 2 3]", order)
	}
}

func TestPublish_OnlyMatchingKind(t *testing.T) {
	b := New()

	var inputs, bids int
	Subscribe(b, func(InputReceived) { inputs++ })
	Subscribe(b, func(BidReceived) { bids++ })

	b.Publish(InputReceived{SessionID: "s"})
	b.Publish(InputReceived{SessionID: "s"})
	b.Publish(BidReceived{Bid: Bid{OpportunityID: "opp_1"}})

	if inputs != 2 {
		t.Errorf("input handler called %d times, want 2", inputs)
	}
	if bids != 1 {
		t.Errorf("bid handler called %d times, want 1", bids)
	}
}

func TestPublish_PanicDoesNotStopDelivery(t *testing.T) {
	b := New()

	var after int
	Subscribe(b, func(InputReceived) { panic("handler blew up") })
	Subscribe(b, func(InputReceived) { after++ })

	b.Publish(InputReceived{SessionID: "s"})

	if after != 1 {
		t.Errorf("handler after panicking one called %d times, want 1", after)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()

	var calls int
	unsub := Subscribe(b, func(InputReceived) { calls++ })

	b.Publish(InputReceived{SessionID: "s"})
	unsub()
	b.Publish(InputReceived{SessionID: "s"})

	if calls != 1 {
		t.Errorf("handler called %d times after unsubscribe, want 1", calls)
	}
}

func TestUnsubscribe_RemovesOnlyItself(t *testing.T) {
	b := New()

	var a, c int
	unsubA := Subscribe(b, func(InputReceived) { a++ })
	Subscribe(b, func(InputReceived) { c++ })

	unsubA()
	b.Publish(InputReceived{SessionID: "s"})

	if a != 0 || c != 1 {
		t.Errorf("a=%d c=%d, want a=0 c=1", a, c)
	}
}

func TestTap_SeesEveryKind(t *testing.T) {
	b := New()

	var kinds []Kind
	b.Tap(func(e Event) { kinds = append(kinds, e.EventKind()) })

	b.Publish(InputReceived{SessionID: "s"})
	b.Publish(BidReceived{})
	b.Publish(BidAccepted{})

	want := []Kind{KindInputReceived, KindBidReceived, KindBidAccepted}
	if len(kinds) != len(want) {
		t.Fatalf("tap saw %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("tap[%d] = %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestTap_DeliveredAfterSubscribers(t *testing.T) {
	b := New()

	var order []string
	b.Tap(func(Event) { order = append(order, "tap") })
	Subscribe(b, func(InputReceived) { order = append(order, "sub") })

	b.Publish(InputReceived{SessionID: "s"})

	if len(order) != 2 || order[0] != "sub" || order[1] != "tap" {
		t.Errorf("order = %v, want [sub tap]", order)
	}
}

func TestSubscribeDuringPublish_DoesNotAffectCurrentDelivery(t *testing.T) {
	b := New()

	var lateCalls int
	Subscribe(b, func(InputReceived) {
		Subscribe(b, func(InputReceived) { lateCalls++ })
	})

	b.Publish(InputReceived{SessionID: "s"})
	if lateCalls != 0 {
		t.Errorf("handler registered mid-publish ran in same publish: %d calls", lateCalls)
	}

	b.Publish(InputReceived{SessionID: "s"})
	if lateCalls != 1 {
		t.Errorf("late handler calls = %d, want 1 on next publish", lateCalls)
	}
}
