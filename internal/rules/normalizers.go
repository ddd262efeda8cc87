package rules

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeFederation turns a federation label such as
// "FF de Tennis" or "'FF d\'Escrime'" into its canonical sport name
// ("tennis", "escrime"). Only "FF de ", "ff d'" and "FF" are stripped, and
// only "ff d'" matches regardless of case.
func NormalizeFederation(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `'"`)
	s = strings.ReplaceAll(s, `\'`, "'")
	s = strings.TrimSpace(s)

	switch {
	case strings.HasPrefix(s, "FF de "):
		s = s[len("FF de "):]
	case strings.HasPrefix(strings.ToLower(s), "ff d'"):
		s = s[len("ff d'"):]
	case strings.HasPrefix(s, "FF"):
		s = s[len("FF"):]
	}

	return strings.ToLower(strings.TrimSpace(s))
}

// FoldAccents removes combining marks: "Fédération" becomes "Federation".
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// FoldedFederation is NormalizeFederation followed by accent folding, for
// consumers that match labels across inconsistently accented exports.
func FoldedFederation(raw string) string {
	return FoldAccents(NormalizeFederation(raw))
}

// SportNameMap maps each lowercased raw label to its canonical name,
// skipping empties. When labels differ only by case the last one wins.
// Labels are returned sorted for stable output.
func SportNameMap(labels []string, normalize NameNormalizer) (map[string]string, []string) {
	if normalize == nil {
		normalize = NormalizeFederation
	}

	out := make(map[string]string)
	for _, label := range labels {
		cleaned := strings.TrimSpace(strings.ReplaceAll(strings.Trim(strings.TrimSpace(label), `'"`), `\'`, "'"))
		if cleaned == "" {
			continue
		}
		out[strings.ToLower(cleaned)] = normalize(cleaned)
	}

	keys := make([]string, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return out, keys
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
