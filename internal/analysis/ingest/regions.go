package ingest

import (
	"regexp"
	"sort"
	"strings"
)

// regionAliases maps a canonical region name to the keywords that count as a
// mention.  Matching is case-insensitive on whole words.  The canonical names
// are the keys of the compliance assessor's baseline-risk table; the two
// tables must stay in sync.
var regionAliases = map[string][]string{
	"india":          {"india", "indian", "nse", "bse", "mumbai", "rbi"},
	"china":          {"china", "chinese", "shanghai", "shenzhen", "beijing"},
	"united_states":  {"united states", "u.s", "usa", "american", "nasdaq", "nyse", "wall street"},
	"united_kingdom": {"united kingdom", "u.k", "britain", "british", "london"},
	"european_union": {"european union", "eurozone", "europe", "european", "ecb"},
	"japan":          {"japan", "japanese", "tokyo", "nikkei"},
	"russia":         {"russia", "russian", "moscow"},
	"brazil":         {"brazil", "brazilian", "bovespa"},
	"middle_east":    {"middle east", "saudi arabia", "uae", "dubai", "gulf"},
	"southeast_asia": {"southeast asia", "singapore", "indonesia", "vietnam", "thailand"},
	"taiwan":         {"taiwan", "taiwanese", "taipei"},
	"south_korea":    {"south korea", "korean", "seoul", "kospi"},
}

// regionMatchers is regionAliases compiled to word-boundary patterns once at
// package init.
var regionMatchers = buildRegionMatchers()

func buildRegionMatchers() map[string]*regexp.Regexp {
	matchers := make(map[string]*regexp.Regexp, len(regionAliases))
	for region, aliases := range regionAliases {
		quoted := make([]string, len(aliases))
		for i, a := range aliases {
			quoted[i] = regexp.QuoteMeta(a)
		}
		matchers[region] = regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	return matchers
}

// ExtractRegions returns the canonical region names mentioned in text, sorted
// alphabetically for determinism.
func ExtractRegions(text string) []string {
	var out []string
	for region, re := range regionMatchers {
		if re.MatchString(text) {
			out = append(out, region)
		}
	}
	sort.Strings(out)
	return out
}

// KnownRegions returns the sorted list of canonical region names the
// extractor recognises.
func KnownRegions() []string {
	out := make([]string, 0, len(regionAliases))
	for region := range regionAliases {
		out = append(out, region)
	}
	sort.Strings(out)
	return out
}
