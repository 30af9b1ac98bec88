package similarity

import (
	"math"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Ratio returns the Ratcliff/Obershelp similarity of two strings scaled to
// 0-100 and rounded half to even. Identical strings score 100 and an empty
// string against a non-empty one scores 0.
func Ratio(a, b string) int {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	m := difflib.NewMatcher(splitRunes(a), splitRunes(b))
	return int(math.RoundToEven(100 * m.Ratio()))
}

// TokenSetRatio compares two strings as sets of tokens. Both sides are
// reduced to lowercase ASCII words; the shared tokens and each side's
// leftovers are sorted and recombined, and the best Ratio among the three
// recombinations is returned. Either side processing to nothing scores 0.
func TokenSetRatio(a, b string) int {
	pa := process(a)
	pb := process(b)
	if pa == "" || pb == "" {
		return 0
	}

	ta := tokenSet(pa)
	tb := tokenSet(pb)

	var sect, onlyA, onlyB []string
	for t := range ta {
		if _, ok := tb[t]; ok {
			sect = append(sect, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range tb {
		if _, ok := ta[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(sect)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	sorted := strings.Join(sect, " ")
	combinedA := strings.TrimSpace(sorted + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(sorted + " " + strings.Join(onlyB, " "))

	return max(
		Ratio(sorted, combinedA),
		Ratio(sorted, combinedB),
		Ratio(combinedA, combinedB),
	)
}

// process drops non-ASCII characters, turns anything but letters, digits
// and underscores into spaces, lowercases and trims.
func process(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r > 127:
			continue
		case r == '_', r >= '0' && r <= '9', r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
