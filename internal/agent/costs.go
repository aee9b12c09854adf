package agent

import (
	"regexp"
	"strconv"
	"strings"
)

// yenPerUSD is the fixed conversion rate for yen-denominated costs found
// in model output.
const yenPerUSD = 150.0

// costPatterns are tried in order; the first match wins. Model output is
// free text, so these favor phrases like "Total cost: ¥22,500".
var costPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)total.*?cost.*?[¥$]?([\d,]+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)[¥$]([\d,]+(?:\.\d+)?).*?total`),
	regexp.MustCompile(`(?i)total.*?[¥$]([\d,]+(?:\.\d+)?)`),
	regexp.MustCompile(`[¥$]([\d,]+(?:\.\d+)?)`),
}

// ExtractCost pulls a total cost in USD out of free-form model text.
// Yen amounts are converted at the fixed rate. Returns false when no
// parseable amount is present.
func ExtractCost(text string) (float64, bool) {
	for _, re := range costPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.ReplaceAll(m[1], ",", "")
		cost, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		if strings.Contains(text, "¥") || strings.Contains(strings.ToLower(text), "yen") {
			return cost / yenPerUSD, true
		}
		return cost, true
	}
	return 0, false
}
