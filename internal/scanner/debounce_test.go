package scanner

import (
	"image"
	"image/color"
	"testing"
	"time"
)

func TestDebouncerAccept(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		second string
		after  time.Duration
		want   bool
	}{
		{"same payload immediately", "TOK123", 0, false},
		{"same payload inside window", "TOK123", 2999 * time.Millisecond, false},
		{"same payload at window edge", "TOK123", 3000 * time.Millisecond, false},
		{"same payload after window", "TOK123", 3001 * time.Millisecond, true},
		{"different payload immediately", "TOK999", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(DefaultDebounceWindow)
			if !d.Accept("TOK123", t0) {
				t.Fatal("first payload rejected")
			}
			if got := d.Accept(tt.second, t0.Add(tt.after)); got != tt.want {
				t.Errorf("Accept(%q, +%v) = %v, want %v", tt.second, tt.after, got, tt.want)
			}
		})
	}
}

func TestDebouncerRecordsBeforeReturning(t *testing.T) {
	d := NewDebouncer(time.Second)
	now := time.Unix(100, 0)
	d.Accept("A", now)

	payload, at := d.Last()
	if payload != "A" || !at.Equal(now) {
		t.Errorf("Last() = %q, %v; want A, %v", payload, at, now)
	}

	// A rejected payload leaves the memory untouched.
	d.Accept("A", now.Add(500*time.Millisecond))
	if _, at := d.Last(); !at.Equal(now) {
		t.Errorf("rejected payload moved lastAcceptedAt to %v", at)
	}
}

func TestDebouncerReset(t *testing.T) {
	d := NewDebouncer(DefaultDebounceWindow)
	now := time.Unix(100, 0)
	d.Accept("TOK123", now)
	d.Reset()

	if payload, at := d.Last(); payload != "" || !at.Equal(now) {
		t.Errorf("after Reset Last() = %q, %v", payload, at)
	}
	if !d.Accept("TOK123", now.Add(time.Millisecond)) {
		t.Error("payload rejected after Reset")
	}
}

func TestSamplerReusesBuffer(t *testing.T) {
	var s Sampler

	src := image.NewGray(image.Rect(10, 10, 30, 20))
	src.SetGray(10, 10, color.Gray{Y: 200})

	first := s.Sample(src)
	if first.Bounds() != image.Rect(0, 0, 20, 10) {
		t.Fatalf("buffer bounds = %v", first.Bounds())
	}
	if r, _, _, _ := first.At(0, 0).RGBA(); r>>8 != 200 {
		t.Errorf("pixel not copied from frame origin, got %d", r>>8)
	}

	second := s.Sample(image.NewGray(image.Rect(0, 0, 20, 10)))
	if first != second {
		t.Error("buffer reallocated for same-size frame")
	}

	third := s.Sample(image.NewGray(image.Rect(0, 0, 40, 30)))
	if third == second {
		t.Error("buffer not reallocated after size change")
	}
	if third.Bounds().Dx() != 40 || third.Bounds().Dy() != 30 {
		t.Errorf("resized buffer bounds = %v", third.Bounds())
	}
}
