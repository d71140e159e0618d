package transcript

import (
	"fmt"
	"math"
	"strings"
)

// PauseText renders a silence of gapMS as an inline annotation: one dot per
// second below ten seconds, then whole seconds, then whole minutes.
func PauseText(gapMS int64) string {
	secs := int(math.Round(float64(gapMS) / 1000))
	switch {
	case secs < 10:
		return "(" + strings.Repeat(".", secs) + ")"
	case secs < 60:
		return fmt.Sprintf("(%d seconds pause)", secs)
	default:
		return fmt.Sprintf("(%d minutes pause)", secs/60)
	}
}
