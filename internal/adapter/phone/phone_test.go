package phone

import (
	"errors"
	"testing"
)

func TestNormalizer_ChatID(t *testing.T) {
	n := NewNormalizer(DefaultOptions())

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "Mobile without country code", input: "(85) 98530-4415", want: "5585985304415@s.whatsapp.net"},
		{name: "Landline without country code", input: "85 3530 4415", want: "558535304415@s.whatsapp.net"},
		{name: "Already international", input: "+55 85 98530-4415", want: "5585985304415@s.whatsapp.net"},
		{name: "Eleven digits are treated as local", input: "+1 (415) 555-0100", want: "5514155550100@s.whatsapp.net"},
		{name: "Local number in area code 55 is still prefixed", input: "(55) 99123-4567", want: "5555991234567@s.whatsapp.net"},
		{name: "Too short", input: "98530-441", wantErr: true},
		{name: "Too long", input: "5585985304415999", wantErr: true},
		{name: "Empty", input: "", wantErr: true},
		{name: "Letters only", input: "call me", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.ChatID(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidNumber) {
					t.Fatalf("expected ErrInvalidNumber, got %v (%q)", err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizer_CustomRange(t *testing.T) {
	n := NewNormalizer(Options{
		CountryCode:    "1",
		LocalMinDigits: 10,
		LocalMaxDigits: 10,
		MinDigits:      11,
		MaxDigits:      11,
		ChatIDSuffix:   "@c.us",
	})

	got, err := n.ChatID("(415) 555-0100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "14155550100@c.us" {
		t.Errorf("got %q", got)
	}
}
