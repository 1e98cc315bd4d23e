package events

import (
	"encoding/json"
	"testing"
)

func TestDecodeEventKeepsNumbers(t *testing.T) {
	ev, err := decodeEvent(`{"type":"offer_created","payload":{"offer_id":18446744073709551615,"block":12}}`)
	if err != nil {
		t.Fatal(err)
	}
	id, ok := ev.Payload["offer_id"].(json.Number)
	if !ok {
		t.Fatalf("offer_id decoded as %T", ev.Payload["offer_id"])
	}
	if id.String() != "18446744073709551615" {
		t.Errorf("offer_id = %s", id)
	}
}

func TestDecodeEventRejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "offer_created"},
		{"missing type", `{"payload":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeEvent(tt.payload); err == nil {
				t.Error("expected error")
			}
		})
	}
}
