package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yalor/ace/internal/bus"
	"github.com/yalor/ace/internal/partner"
)

// mockBidDelay simulates DSP processing time so auction behavior is
// realistic in demos.
const mockBidDelay = 100 * time.Millisecond

// PartnerBidResponse is the wire shape a partner webhook answers with.
// A zero amount is a pass.
type PartnerBidResponse struct {
	BidAmount float64      `json:"bid_amount"`
	NativeAd  bus.NativeAd `json:"native_ad"`
}

// handleCouponNetwork is a built-in stand-in for an external coupon DSP.
// It runs a single campaign: meat-adjacent intent earns a $1.50 bid with a
// wagyu coupon creative.
func handleCouponNetwork(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req partner.BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid bid request: %v", err)
		return
	}

	intent := strings.ToLower(req.Site.Ext.Data.IntentSummary)
	slog.Info("mock coupon network received bid request",
		"request_id", req.ID,
		"intent", intent,
	)

	time.Sleep(mockBidDelay)

	w.Header().Set("Content-Type", "application/json")

	if !strings.Contains(intent, "bbq") && !strings.Contains(intent, "steak") && !strings.Contains(intent, "meat") {
		json.NewEncoder(w).Encode(PartnerBidResponse{BidAmount: 0})
		return
	}

	resp := PartnerBidResponse{BidAmount: 1.50}
	resp.NativeAd.Native.Assets = []bus.NativeAsset{
		{ID: 1, Title: &bus.NativeTitle{Text: "$2 off Premium Wagyu Burgers"}},
		{ID: 2, Img: &bus.NativeImage{URL: "https://images.unsplash.com/photo-1600891964092-4316c288032e?auto=format&fit=crop&w=300&h=250"}},
		{ID: 3, Data: &bus.NativeDataValue{Type: 1, Value: "Yalor Groceries"}},
		{ID: 4, Data: &bus.NativeDataValue{Type: 2, Value: "Valid on all online meat orders."}},
	}
	resp.NativeAd.Native.Link.URL = "https://yalor.co/coupons/wagyu"
	resp.NativeAd.Native.ImpTrackers = []string{"https://dummy-ad-network.com/track/impression?id=123"}

	json.NewEncoder(w).Encode(resp)
}
