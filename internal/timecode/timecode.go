// Package timecode converts between milliseconds and clock notation.
package timecode

import (
	"fmt"
	"strconv"
	"strings"
)

// Clock formats ms as hh:mm:ss, truncating fractions of a second.
func Clock(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

// VTT formats ms as the WebVTT cue time hh:mm:ss.mmm.
func VTT(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	return fmt.Sprintf("%s.%03d", Clock(ms), ms%1000)
}

// Parse reads "hh:mm:ss", "mm:ss", or "ss", each optionally followed by a
// fraction of a second, and returns milliseconds.
func Parse(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("parse time: empty value")
	}
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("parse time %q: want hh:mm:ss", value)
	}
	var total float64
	for i, part := range parts {
		n, err := strconv.ParseFloat(part, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("parse time %q: invalid field %q", value, part)
		}
		last := i == len(parts)-1
		if !last && n != float64(int64(n)) {
			return 0, fmt.Errorf("parse time %q: only seconds may have a fraction", value)
		}
		if i > 0 && n >= 60 {
			return 0, fmt.Errorf("parse time %q: field %q out of range", value, part)
		}
		total = total*60 + n
	}
	return int64(total*1000 + 0.5), nil
}
