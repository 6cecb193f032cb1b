package timeline

import (
	"fmt"
	"math"
)

// FormatTime renders seconds as "M:SS.FF" where FF is the frame within the second at fps.
// The frame part is omitted when fps is not positive.
func FormatTime(seconds float64, fps int) string {
	minutes := int64(math.Floor(seconds / 60))
	secs := int64(math.Floor(math.Mod(seconds, 60)))

	out := fmt.Sprintf("%d:%02d", minutes, secs)
	if fps > 0 {
		frames := int64(math.Floor(math.Mod(seconds, 1) * float64(fps)))
		out += fmt.Sprintf(".%02d", frames)
	}
	return out
}
