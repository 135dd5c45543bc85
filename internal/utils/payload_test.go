package utils

import "testing"

func TestSeatLabel(t *testing.T) {
	tests := []struct {
		seat int
		want string
	}{
		{1, "A1"},
		{10, "A10"},
		{11, "B1"},
		{17, "B7"},
		{260, "Z10"},
		{261, "#261"},
		{0, "#0"},
		{-3, "#-3"},
	}
	for _, tt := range tests {
		if got := SeatLabel(tt.seat); got != tt.want {
			t.Errorf("SeatLabel(%d) = %q, want %q", tt.seat, got, tt.want)
		}
	}
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "***"},
		{"abcdefgh", "********"},
		{"abcdefghij", "abcd**ghij"},
	}
	for _, tt := range tests {
		if got := MaskToken(tt.in); got != tt.want {
			t.Errorf("MaskToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("TOK123")
	if len(a) != 32 {
		t.Fatalf("Fingerprint length = %d, want 32", len(a))
	}
	if a != Fingerprint("TOK123") {
		t.Error("Fingerprint is not deterministic")
	}
	if a == Fingerprint("TOK124") {
		t.Error("Fingerprint collided for different payloads")
	}
}
