package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yalor/ace/internal/bus"
)

func wagyuAccepted(sessionID string) bus.BidAccepted {
	win := bus.Bid{
		SessionID:     sessionID,
		OpportunityID: "opp_1",
		PartnerID:     "coupon-network",
		Amount:        1.50,
	}
	win.Creative.Native.Assets = []bus.NativeAsset{
		{ID: 1, Title: &bus.NativeTitle{Text: "$2 off Premium Wagyu Burgers"}},
		{ID: 2, Img: &bus.NativeImage{URL: "https://cdn.example.com/wagyu.jpg"}},
		{ID: 3, Data: &bus.NativeDataValue{Type: 1, Value: "Yalor Groceries"}},
		{ID: 4, Data: &bus.NativeDataValue{Type: 2, Value: "Valid on all online meat orders."}},
	}
	win.Creative.Native.Link.URL = "https://yalor.co/coupons/wagyu"
	return bus.BidAccepted{
		SessionID:     sessionID,
		OpportunityID: "opp_1",
		PartnerID:     "coupon-network",
		Amount:        1.50,
		WinningBid:    win,
	}
}

func TestNewOffer_FlattensNativeCreative(t *testing.T) {
	o := NewOffer(wagyuAccepted("sess"))

	if o.Protocol != "AdCP" || o.SessionID != "sess" || o.OpportunityID != "opp_1" {
		t.Errorf("envelope = %+v", o)
	}
	if o.Creative.Title != "$2 off Premium Wagyu Burgers" {
		t.Errorf("title = %q", o.Creative.Title)
	}
	if o.Creative.ImageURL != "https://cdn.example.com/wagyu.jpg" {
		t.Errorf("image = %q", o.Creative.ImageURL)
	}
	if o.Creative.BrandName != "Yalor Groceries" || o.Creative.Description != "Valid on all online meat orders." {
		t.Errorf("brand/description = %q / %q", o.Creative.BrandName, o.Creative.Description)
	}
	if o.Creative.ClickURL != "https://yalor.co/coupons/wagyu" {
		t.Errorf("click url = %q", o.Creative.ClickURL)
	}
	if o.Directives.Tone != "helpful" || o.Directives.MustInclude == "" {
		t.Errorf("directives = %+v", o.Directives)
	}
	if o.Tracking.OnRendered != "/track/render?opp=opp_1" || o.Tracking.OnDismissed != "/track/dismiss?opp=opp_1" {
		t.Errorf("tracking = %+v", o.Tracking)
	}
}

func TestBridge_RejectsEmptyMessage(t *testing.T) {
	br := New(bus.New(), time.Second)
	if _, err := br.Handle(context.Background(), "sess", "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("err = %v, want ErrEmptyMessage", err)
	}
}

func TestBridge_ResolvesOnAcceptedBid(t *testing.T) {
	b := bus.New()
	br := New(b, 2*time.Second)

	// Settle the auction as soon as the turn hits the bus.
	bus.Subscribe(b, func(e bus.InputReceived) {
		go b.Publish(wagyuAccepted(e.SessionID))
	})

	ready := make(chan bus.OfferReady, 1)
	bus.Subscribe(b, func(e bus.OfferReady) { ready <- e })

	offer, err := br.Handle(context.Background(), "sess", "I need steaks")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if offer == nil || offer.Creative.Title != "$2 off Premium Wagyu Burgers" {
		t.Fatalf("offer = %+v", offer)
	}

	select {
	case e := <-ready:
		if e.Offer.OpportunityID != offer.OpportunityID {
			t.Errorf("OFFER_READY mismatch: %+v", e.Offer)
		}
	case <-time.After(time.Second):
		t.Error("no OFFER_READY on the bus")
	}
}

func TestBridge_DeadlineMeansNoOffer(t *testing.T) {
	br := New(bus.New(), 50*time.Millisecond)

	start := time.Now()
	offer, err := br.Handle(context.Background(), "sess", "hello")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if offer != nil {
		t.Errorf("offer = %+v, want nil", offer)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("deadline not enforced, took %v", elapsed)
	}
}

func TestBridge_IgnoresOtherSessionsWins(t *testing.T) {
	b := bus.New()
	br := New(b, 100*time.Millisecond)

	bus.Subscribe(b, func(e bus.InputReceived) {
		go b.Publish(wagyuAccepted("someone-else"))
	})

	offer, err := br.Handle(context.Background(), "sess", "hello")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if offer != nil {
		t.Errorf("resolved with another session's win: %+v", offer)
	}
}

func TestBridge_RejectsConcurrentTurnSameSession(t *testing.T) {
	b := bus.New()
	br := New(b, time.Second)

	inFlight := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		bus.Subscribe(b, func(bus.InputReceived) { close(inFlight) })
		br.Handle(context.Background(), "sess", "first turn")
	}()

	<-inFlight
	if _, err := br.Handle(context.Background(), "sess", "second turn"); !errors.Is(err, ErrSessionBusy) {
		t.Errorf("err = %v, want ErrSessionBusy", err)
	}
	<-done

	// The slot frees up once the first turn resolves.
	if _, err := br.Handle(context.Background(), "sess", "third turn"); errors.Is(err, ErrSessionBusy) {
		t.Error("session still busy after first turn resolved")
	}
}

func TestBridge_ParallelSessionsDoNotBlockEachOther(t *testing.T) {
	b := bus.New()
	br := New(b, time.Second)

	bus.Subscribe(b, func(e bus.InputReceived) {
		go b.Publish(wagyuAccepted(e.SessionID))
	})

	errs := make(chan error, 2)
	for _, sid := range []string{"s1", "s2"} {
		go func() {
			offer, err := br.Handle(context.Background(), sid, "steaks")
			if err == nil && offer == nil {
				err = errors.New("no offer for " + sid)
			}
			errs <- err
		}()
	}
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Error(err)
		}
	}
}

func TestBridge_CancellationPropagates(t *testing.T) {
	br := New(bus.New(), 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := br.Handle(ctx, "sess", "hello"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
