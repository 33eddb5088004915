package classify

import (
	"regexp"
	"strings"

	"github.com/efebarandurmaz/lineage/internal/ir"
)

var cloudOnlyPhrases = []*regexp.Regexp{
	regexp.MustCompile(`\bonly has an effect in clickhouse cloud\b`),
	regexp.MustCompile(`\bonly in clickhouse cloud\b`),
	regexp.MustCompile(`\bonly available in clickhouse cloud\b`),
	regexp.MustCompile(`\bclickhouse cloud only\b`),
}

var flagSeparators = regexp.MustCompile(`[^A-Za-z_]+`)

// CloudOnly reports whether the description restricts a setting to the hosted
// service.
func CloudOnly(description string) bool {
	if description == "" {
		return false
	}
	text := strings.ToLower(description)
	for _, re := range cloudOnlyPhrases {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// ParseFlags derives the tier and importance from a flag expression such as
// "EXPERIMENTAL | IMPORTANT". Tier priority is fixed regardless of token
// order: experimental, beta, obsolete, then production.
func ParseFlags(flags string) (ir.Tier, bool) {
	var experimental, beta, obsolete, important bool
	for _, tok := range flagSeparators.Split(flags, -1) {
		switch strings.ToLower(tok) {
		case "experimental":
			experimental = true
		case "beta":
			beta = true
		case "obsolete":
			obsolete = true
		case "important":
			important = true
		}
	}
	switch {
	case experimental:
		return ir.TierExperimental, important
	case beta:
		return ir.TierBeta, important
	case obsolete:
		return ir.TierObsolete, important
	}
	return ir.TierProduction, important
}

// Classifier turns declarations into classified entries.
type Classifier struct {
	Table *Table
}

// Classify derives category, cloud-only, tier and importance for d.
func (c *Classifier) Classify(d ir.Declaration, docsURL string) ir.Entry {
	tier, important := ParseFlags(d.Flags)
	return ir.Entry{
		Declaration: d,
		Category:    c.Table.Categorize(d.Name, d.Description),
		CloudOnly:   CloudOnly(d.Description),
		Tier:        tier,
		Important:   important,
		DocsURL:     docsURL,
	}
}
