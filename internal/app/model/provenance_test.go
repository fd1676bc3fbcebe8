package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSplitMarker(t *testing.T) {
	tests := []struct {
		name    string
		details string
		ref     string
		ok      bool
	}{
		{"code", "split from original order ORD-1A2B3C4D", "ORD-1A2B3C4D", true},
		{"id with hash", "Gift wrap please\nSplit from original order #42.", "42", true},
		{"mixed case", "SPLIT FROM ORIGINAL ORDER 7", "7", true},
		{"no marker", "leave at the door", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, ok := ParseSplitMarker(tt.details)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.ref, ref)
		})
	}
}

func TestSplitMarkerRoundTrip(t *testing.T) {
	details := AppendDetail("fragile", SplitMarker("ORD-XYZ"))

	ref, ok := ParseSplitMarker(details)
	assert.True(t, ok)
	assert.Equal(t, "ORD-XYZ", ref)
	assert.Equal(t, "fragile\nsplit from original order ORD-XYZ", details)
}

func TestParseReturnReason(t *testing.T) {
	reason, ok := ParseReturnReason("note\nReturn reason: wrong size \nthanks")
	assert.True(t, ok)
	assert.Equal(t, "wrong size", reason)

	_, ok = ParseReturnReason("Return reason:   ")
	assert.False(t, ok)
}

func TestOrder_ReturnReasonTextPrefersTypedField(t *testing.T) {
	o := Order{ReturnReason: "damaged", OrderDetails: "Return reason: legacy"}
	assert.Equal(t, "damaged", o.ReturnReasonText())

	o.ReturnReason = ""
	assert.Equal(t, "legacy", o.ReturnReasonText())
}

func TestOrder_IsDivision(t *testing.T) {
	parent := uint(3)
	assert.True(t, (&Order{ParentOrderID: &parent}).IsDivision())
	assert.True(t, (&Order{OrderDetails: "split from original order 3"}).IsDivision())
	assert.False(t, (&Order{OrderDetails: "ring size 12"}).IsDivision())
}

func TestOrder_EffectiveItems(t *testing.T) {
	o := Order{Items: []ItemSnapshot{{ProductName: "snapshot", Quantity: 1}}}
	assert.Equal(t, "snapshot", o.EffectiveItems()[0].ProductName)

	o.OrderItems = []OrderItem{{ProductName: "normalized", Quantity: 2}, {ProductName: "second", Quantity: 1}}
	items := o.EffectiveItems()
	assert.Len(t, items, 2)
	assert.Equal(t, "normalized", items[0].ProductName)
}

func TestStoreResponseStatusSynonyms(t *testing.T) {
	assert.True(t, StoreResponseAvailable.IsConfirmed())
	assert.True(t, StoreResponseAccepted.IsConfirmed())
	assert.True(t, StoreResponseUnavailable.IsDeclined())
	assert.True(t, StoreResponseRejected.IsDeclined())
	assert.True(t, StoreResponseNone.IsAwaiting())
	assert.True(t, StoreResponsePending.IsAwaiting())
	assert.False(t, StoreResponseAccepted.IsAwaiting())
}

func TestStore_MatchesName(t *testing.T) {
	s := Store{Name: "Gangnam Gold"}
	assert.True(t, s.MatchesName("  gangnam gold "))
	assert.False(t, s.MatchesName("Gangnam"))
}
