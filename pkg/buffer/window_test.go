package buffer

import (
	"errors"
	"testing"
)

func TestWindowAppendSlice(t *testing.T) {
	w := NewWindow[int](4)
	w.Append([]int{1, 2, 3})
	w.Append([]int{4, 5})

	if got := w.Total(); got != 5 {
		t.Fatalf("Total() = %d, want 5", got)
	}
	if got := w.Base(); got != 0 {
		t.Fatalf("Base() = %d, want 0", got)
	}

	s, err := w.Slice(1, 4)
	if err != nil {
		t.Fatalf("Slice(1, 4) error: %v", err)
	}
	want := []int{2, 3, 4}
	for i := range want {
		if s[i] != want[i] {
			t.Errorf("Slice(1, 4)[%d] = %d, want %d", i, s[i], want[i])
		}
	}
}

func TestWindowDropBefore(t *testing.T) {
	w := NewWindow[int](4)
	w.Append([]int{10, 11, 12, 13, 14, 15})

	w.DropBefore(4)
	if got := w.Base(); got != 4 {
		t.Errorf("Base() after DropBefore(4) = %d, want 4", got)
	}
	if got := w.Total(); got != 6 {
		t.Errorf("Total() after DropBefore(4) = %d, want 6", got)
	}
	if got := w.Len(); got != 2 {
		t.Errorf("Len() after DropBefore(4) = %d, want 2", got)
	}

	s, err := w.Slice(4, 6)
	if err != nil {
		t.Fatalf("Slice(4, 6) error: %v", err)
	}
	if s[0] != 14 || s[1] != 15 {
		t.Errorf("Slice(4, 6) = %v, want [14 15]", s)
	}

	// Dropping below the base is a no-op.
	w.DropBefore(2)
	if got := w.Base(); got != 4 {
		t.Errorf("Base() after DropBefore(2) = %d, want 4", got)
	}

	// Dropping past the end clamps and keeps Total.
	w.DropBefore(100)
	if got := w.Base(); got != 6 {
		t.Errorf("Base() after DropBefore(100) = %d, want 6", got)
	}
	if got := w.Total(); got != 6 {
		t.Errorf("Total() after DropBefore(100) = %d, want 6", got)
	}
}

func TestWindowSliceOutOfRange(t *testing.T) {
	w := NewWindow[byte](4)
	w.Append([]byte{1, 2, 3, 4})
	w.DropBefore(2)

	cases := []struct {
		name     string
		from, to int64
	}{
		{"below base", 0, 3},
		{"past end", 2, 5},
		{"inverted", 3, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := w.Slice(tc.from, tc.to); !errors.Is(err, ErrOutOfWindow) {
				t.Errorf("Slice(%d, %d) error = %v, want ErrOutOfWindow", tc.from, tc.to, err)
			}
		})
	}
}

func TestWindowAppendZero(t *testing.T) {
	w := NewWindow[float32](8)
	w.Append([]float32{1.5})
	w.AppendZero(3)

	if got := w.Total(); got != 4 {
		t.Fatalf("Total() = %d, want 4", got)
	}
	s, err := w.Slice(0, 4)
	if err != nil {
		t.Fatalf("Slice(0, 4) error: %v", err)
	}
	if s[0] != 1.5 || s[1] != 0 || s[2] != 0 || s[3] != 0 {
		t.Errorf("Slice(0, 4) = %v, want [1.5 0 0 0]", s)
	}
}

func TestWindowReset(t *testing.T) {
	w := NewWindow[int](4)
	w.Append([]int{1, 2, 3})
	w.DropBefore(2)
	w.Reset()

	if got := w.Total(); got != 0 {
		t.Errorf("Total() after Reset = %d, want 0", got)
	}
	if got := w.Base(); got != 0 {
		t.Errorf("Base() after Reset = %d, want 0", got)
	}

	// The window is usable again from position zero.
	w.Append([]int{7})
	s, err := w.Slice(0, 1)
	if err != nil {
		t.Fatalf("Slice(0, 1) after Reset error: %v", err)
	}
	if s[0] != 7 {
		t.Errorf("Slice(0, 1)[0] = %d, want 7", s[0])
	}
}
