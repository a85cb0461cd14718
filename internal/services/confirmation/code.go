package confirmation

import (
	"slices"
	"strconv"
	"strings"

	"github.com/mcoot/playeraccounts/internal/dependencies/random"
)

// Code lengths, in three-digit segments
const (
	ConfirmationSegments = 10
	ShortCodeSegments    = 2
)

var digits = []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

// GenerateCode builds a numeric code of the given number of segments. Each
// segment holds two distinct digits plus a repeat of one of them.
func GenerateCode(rng random.Random, segments int) string {
	pool := slices.Clone(digits)
	var b strings.Builder
	for range segments {
		if len(pool) <= 4 {
			pool = slices.Clone(digits)
		}
		var d1, d2 int
		d1, pool = draw(rng, pool)
		d2, pool = draw(rng, pool)

		repeater := d2
		if rng.Intn(100) < 50 {
			repeater = d1
		}

		var seg [3]int
		switch p := rng.Intn(100); {
		case p < 33:
			seg = [3]int{repeater, d1, d2}
		case p < 66:
			seg = [3]int{d1, repeater, d2}
		default:
			seg = [3]int{d1, d2, repeater}
		}
		for _, d := range seg {
			b.WriteString(strconv.Itoa(d))
		}
	}
	return b.String()
}

func draw(rng random.Random, pool []int) (int, []int) {
	i := rng.Intn(len(pool))
	d := pool[i]
	return d, slices.Delete(pool, i, i+1)
}
