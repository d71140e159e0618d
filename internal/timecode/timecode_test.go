package timecode

import "testing"

func TestClockAndVTT(t *testing.T) {
	tests := []struct {
		ms    int64
		clock string
		vtt   string
	}{
		{0, "00:00:00", "00:00:00.000"},
		{12140, "00:00:12", "00:00:12.140"},
		{3723004, "01:02:03", "01:02:03.004"},
		{-5, "00:00:00", "00:00:00.000"},
	}
	for _, tt := range tests {
		if got := Clock(tt.ms); got != tt.clock {
			t.Fatalf("Clock(%d) = %q, want %q", tt.ms, got, tt.clock)
		}
		if got := VTT(tt.ms); got != tt.vtt {
			t.Fatalf("VTT(%d) = %q, want %q", tt.ms, got, tt.vtt)
		}
	}
}

func TestParse(t *testing.T) {
	tests := map[string]int64{
		"00:00:00":   0,
		"01:02:03":   3723000,
		"2:30":       150000,
		"90":         90000,
		"00:00:01.5": 1500,
	}
	for input, want := range tests {
		got, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("Parse(%q) = %d, want %d", input, got, want)
		}
	}
	for _, bad := range []string{"", "aa:bb", "1:2:3:4", "00:61:00", "1.5:00", "-1"} {
		if _, err := Parse(bad); err == nil {
			t.Fatalf("Parse(%q) should fail", bad)
		}
	}
}
