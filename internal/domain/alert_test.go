package domain

import (
	"strings"
	"testing"
	"time"
)

func alertTypes(candidates []AlertCandidate) map[AlertType]string {
	out := make(map[AlertType]string, len(candidates))
	for _, c := range candidates {
		out[c.Type] = c.Message
	}
	return out
}

func TestEvaluateAlerts_LowStockMessageStatesQuantity(t *testing.T) {
	rec := newTestRecord(t, 5, 10)

	got := alertTypes(EvaluateAlerts(rec, "Aspirin", testNow, DefaultExpiryWindowDays))
	if len(got) != 1 {
		t.Fatalf("expected exactly one alert, got %v", got)
	}
	msg, ok := got[AlertLowStock]
	if !ok {
		t.Fatalf("expected a low_stock alert, got %v", got)
	}
	if !strings.Contains(msg, "5") || !strings.Contains(msg, "Aspirin") {
		t.Errorf("message %q should name the drug and remaining quantity", msg)
	}
}

func TestEvaluateAlerts_Rules(t *testing.T) {
	today := DateOf(testNow)
	day := func(offset int) *time.Time {
		d := today.AddDate(0, 0, offset)
		return &d
	}

	tests := []struct {
		name      string
		quantity  int
		threshold int
		expiry    *time.Time
		want      []AlertType
	}{
		{"healthy", 50, 10, nil, nil},
		{"out of stock", 0, 10, nil, []AlertType{AlertOutOfStock}},
		{"at threshold", 10, 10, nil, []AlertType{AlertLowStock}},
		{"above threshold", 11, 10, nil, nil},
		{"expires today", 50, 10, day(0), []AlertType{AlertExpiringSoon}},
		{"expires at window edge", 50, 10, day(30), []AlertType{AlertExpiringSoon}},
		{"expires beyond window", 50, 10, day(31), nil},
		{"expired", 50, 10, day(-2), []AlertType{AlertExpired}},
		{"empty and expired", 0, 10, day(-1), []AlertType{AlertOutOfStock, AlertExpired}},
		{"low and expiring", 3, 10, day(7), []AlertType{AlertLowStock, AlertExpiringSoon}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newTestRecord(t, tt.quantity, tt.threshold)
			rec.ExpiryDate = tt.expiry

			got := alertTypes(EvaluateAlerts(rec, "Ibuprofen", testNow, DefaultExpiryWindowDays))
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for _, w := range tt.want {
				if _, ok := got[w]; !ok {
					t.Errorf("missing %s alert in %v", w, got)
				}
			}
		})
	}
}

func TestEvaluateAlerts_ExpiredMessageCountsDays(t *testing.T) {
	rec := newTestRecord(t, 50, 10)
	expiry := DateOf(testNow).AddDate(0, 0, -4)
	rec.ExpiryDate = &expiry

	got := alertTypes(EvaluateAlerts(rec, "Amoxicillin", testNow, DefaultExpiryWindowDays))
	if msg := got[AlertExpired]; msg != "Amoxicillin expired 4 days ago" {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestEvaluateAlerts_DiscontinuedRecordsStillAlert(t *testing.T) {
	rec := newTestRecord(t, 0, 10)
	rec.Discontinue(testNow)

	got := alertTypes(EvaluateAlerts(rec, "Codeine", testNow, DefaultExpiryWindowDays))
	if _, ok := got[AlertOutOfStock]; !ok {
		t.Errorf("expected out_of_stock alert for discontinued empty record, got %v", got)
	}
}

func TestParseAlertType(t *testing.T) {
	if got, err := ParseAlertType(" LOW_STOCK "); err != nil || got != AlertLowStock {
		t.Errorf("ParseAlertType() = %q, %v", got, err)
	}
	if _, err := ParseAlertType("overstock"); err == nil {
		t.Error("expected error for unknown alert type")
	}
}

func TestAlert_Resolve(t *testing.T) {
	a := &Alert{AlertType: AlertLowStock}
	a.Resolve(testNow)

	if !a.IsResolved || a.ResolvedAt == nil || !a.ResolvedAt.Equal(testNow) {
		t.Errorf("alert not resolved correctly: %+v", a)
	}
}
