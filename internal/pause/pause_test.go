package pause

import (
	"math"
	"testing"
)

const rate = 16000

func seconds(v float64) int64 { return int64(v * rate) }

func testAdjuster() *Adjuster {
	return New([]Chunk{
		{Start: seconds(0.5), End: seconds(3.0)},
		{Start: seconds(5.0), End: seconds(8.0)},
	}, rate, 10)
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestWindows(t *testing.T) {
	got := testAdjuster().Windows()
	want := []Window{{2.8, 5.2}, {7.8, 10.2}}
	if len(got) != len(want) {
		t.Fatalf("windows = %v", got)
	}
	for i := range want {
		if !near(got[i].Start, want[i].Start) || !near(got[i].End, want[i].End) {
			t.Fatalf("window %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAdjust(t *testing.T) {
	a := testAdjuster()
	tests := []struct {
		name               string
		start, end         float64
		wantStart, wantEnd float64
	}{
		{"speech only", 1.0, 2.5, 1.0, 2.5},
		{"start in pause", 4.0, 7.0, 5.2, 7.0},
		{"end in pause", 1.0, 4.0, 1.0, 2.8},
		{"both in pauses", 3.5, 9.0, 5.2, 7.8},
		{"inside one pause", 3.2, 4.8, 3.2, 4.8},
		{"trailing silence", 6.0, 9.9, 6.0, 7.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, e := a.Adjust(tt.start, tt.end)
			if !near(s, tt.wantStart) || !near(e, tt.wantEnd) {
				t.Fatalf("Adjust(%v, %v) = (%v, %v), want (%v, %v)", tt.start, tt.end, s, e, tt.wantStart, tt.wantEnd)
			}
			if s >= e {
				t.Fatalf("Adjust produced start >= end: (%v, %v)", s, e)
			}
		})
	}
}

func TestAdjustIdempotent(t *testing.T) {
	a := New([]Chunk{
		{Start: seconds(0), End: seconds(1.0)},
		{Start: seconds(1.3), End: seconds(1.5)},
		{Start: seconds(1.7), End: seconds(4.0)},
	}, rate, 6)
	for start := 0.0; start < 6; start += 0.05 {
		for end := start + 0.05; end < 6.2; end += 0.1 {
			s1, e1 := a.Adjust(start, end)
			s2, e2 := a.Adjust(s1, e1)
			if s1 != s2 || e1 != e2 {
				t.Fatalf("Adjust not idempotent for (%v, %v): (%v, %v) then (%v, %v)", start, end, s1, e1, s2, e2)
			}
		}
	}
}

func TestAdjustWithoutChunks(t *testing.T) {
	a := New(nil, rate, 10)
	if s, e := a.Adjust(1, 2); s != 1 || e != 2 {
		t.Fatalf("no chunks should not adjust, got (%v, %v)", s, e)
	}
	var nilAdjuster *Adjuster
	if s, e := nilAdjuster.Adjust(1, 2); s != 1 || e != 2 {
		t.Fatal("nil adjuster should not adjust")
	}
}
