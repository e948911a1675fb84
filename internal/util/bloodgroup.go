package util

import "strings"

type spellingVariant struct {
	pattern   string
	canonical string
}

// bloodGroupVariants is matched by substring in declaration order, first hit wins.
// Every word-form spelling of every group is declared before any sign-only one, so
// "b-positive" never reaches "b-". Within each pass AB comes first because "b+" and
// "b negative" are substrings of the AB spellings.
var bloodGroupVariants = buildBloodGroupVariants([]string{"ab", "a", "b", "o"})

var (
	rhSeparators = []string{" ", "-", ""}
	rhWords      = []struct{ suffix, sign string }{
		{"positive", "+"}, {"pos", "+"}, {"+ve", "+"}, {"(+)", "+"},
		{"negative", "-"}, {"neg", "-"}, {"-ve", "-"}, {"(-)", "-"},
	}
	rhSigns = []struct{ suffix, sign string }{
		{" +", "+"}, {"+", "+"}, {" -", "-"}, {"-", "-"},
	}
)

func buildBloodGroupVariants(groups []string) []spellingVariant {
	var out []spellingVariant
	for _, g := range groups {
		for _, w := range rhWords {
			for _, sep := range rhSeparators {
				out = append(out, spellingVariant{pattern: g + sep + w.suffix, canonical: strings.ToUpper(g) + w.sign})
			}
		}
	}
	for _, g := range groups {
		for _, sg := range rhSigns {
			out = append(out, spellingVariant{pattern: g + sg.suffix, canonical: strings.ToUpper(g) + sg.sign})
		}
	}
	return out
}

// NormalizeBloodGroup maps free-text ABO/Rh spellings to A+, O-, AB+ and so on.
// Unknown spellings pass through upper-cased; the bool reports whether a variant matched.
func NormalizeBloodGroup(raw string) (*string, bool) {
	s := strings.ToLower(CleanCell(raw))
	if s == "" {
		return nil, true
	}
	for _, v := range bloodGroupVariants {
		if strings.Contains(s, v.pattern) {
			return StringPtr(v.canonical), true
		}
	}
	return StringPtr(strings.ToUpper(s)), false
}
