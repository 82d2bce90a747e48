package extraction

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// minVendorScore is the confidence gate for the line-scoring fallback
const minVendorScore = 4.0

var (
	vendorAnchor = regexp.MustCompile(`(?i)^[ \t]*(?:INVOICE|RECEIPT|STORE|FROM|TO)\b[ \t]*(?:NAME)?[ \t]*[:\-#]?[ \t]*(.*)$`)
	vendorNoise  = regexp.MustCompile(`[^\p{L}\p{N}_\s&\-.]`)
	spaces       = regexp.MustCompile(`\s{2,}`)

	vendorStopwords = wordSet("INVOICE", "RECEIPT", "TAX", "GST", "VAT", "TOTAL", "BILL", "DATE", "TIME",
		"CASH", "CARD", "AMOUNT", "CHANGE", "BALANCE")
	// a candidate starting with one of these is a label, not a name
	leadingLabels = wordSet("NO", "NO.", "NUMBER", "NUM", "ID", "DATE", "TIME", "TOTAL", "AMOUNT", "TAX",
		"PAGE", "BILL", "INVOICE", "RECEIPT", "SUBTOTAL")
	legalSuffixes   = wordSet("LTD", "LIMITED", "PVT", "PRIVATE", "LLP", "LLC", "INC", "CORP", "CO", "COMPANY", "SDN", "BHD")
	addressKeywords = wordSet("ROAD", "STREET", "ST", "RD", "AVE", "AVENUE", "LANE", "JALAN", "NAGAR", "SECTOR",
		"CITY", "STATE", "COUNTRY", "PIN", "ZIP")
)

func wordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// HeuristicVendor finds a vendor name next to anchor keywords, falling back
// to scoring the top lines of the document.
type HeuristicVendor struct {
	caser cases.Caser
}

// NewHeuristicVendor creates the keyword-proximity vendor tier
func NewHeuristicVendor() *HeuristicVendor {
	return &HeuristicVendor{caser: cases.Title(language.English)}
}

// Name implements Tier
func (h *HeuristicVendor) Name() string {
	return "heuristic"
}

// Lookup implements Tier. Only vendor_name is answered.
func (h *HeuristicVendor) Lookup(field, text string) (any, bool) {
	if field != FieldVendorName {
		return nil, false
	}
	name := h.Vendor(text)
	if name == "" {
		return nil, false
	}
	return name, true
}

// Vendor returns the best vendor candidate or an empty string
func (h *HeuristicVendor) Vendor(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	if name := anchoredVendor(lines); name != "" {
		return h.caser.String(name)
	}
	if name := scoredVendor(lines); name != "" {
		return h.caser.String(name)
	}
	return ""
}

func anchoredVendor(lines []string) string {
	for i, line := range lines {
		m := vendorAnchor.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if name := vendorCandidate(m[1]); name != "" {
			return name
		}
		for _, next := range lines[i+1:] {
			if strings.TrimSpace(next) == "" {
				continue
			}
			if name := vendorCandidate(next); name != "" {
				return name
			}
			break
		}
	}
	return ""
}

func vendorCandidate(s string) string {
	s = cleanLine(s)
	if s == "" {
		return ""
	}
	tokens := strings.Fields(s)
	if _, ok := leadingLabels[strings.ToUpper(tokens[0])]; ok {
		return ""
	}
	if len(tokens) > 6 {
		tokens = tokens[:6]
	}
	s = strings.Trim(strings.Join(tokens, " "), "-. ")

	letters, digits := 0, 0
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r):
			digits++
		}
	}
	if letters < 2 || float64(digits)/float64(len([]rune(s))) > 0.3 {
		return ""
	}
	return s
}

func cleanLine(s string) string {
	s = vendorNoise.ReplaceAllString(s, "")
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

type scoredLine struct {
	line  string
	score float64
}

func scoredVendor(lines []string) string {
	var kept []string
	for _, l := range lines {
		if len(strings.TrimSpace(l)) >= 3 {
			kept = append(kept, cleanLine(l))
		}
	}
	if len(kept) > 20 {
		kept = kept[:20]
	}
	if len(kept) == 0 {
		return ""
	}

	scored := make([]scoredLine, 0, len(kept))
	for i, l := range kept {
		scored = append(scored, scoredLine{line: l, score: scoreLine(l, i)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	for _, c := range scored {
		if c.score < minVendorScore {
			break
		}
		if name := vendorCandidate(c.line); name != "" {
			return name
		}
	}
	return ""
}

// scoreLine estimates how likely a header line is the vendor's name
func scoreLine(line string, index int) float64 {
	if line == "" {
		return 0
	}
	tokens := strings.Fields(line)
	score := float64(max(0, 12-index))

	digits := 0
	for _, r := range line {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if float64(digits)/float64(len([]rune(line))) > 0.15 {
		score -= 4
	}

	address, legal, stop := false, false, 0
	for _, t := range tokens {
		u := strings.ToUpper(t)
		if _, ok := addressKeywords[u]; ok {
			address = true
		}
		if _, ok := legalSuffixes[strings.TrimRight(u, ".")]; ok {
			legal = true
		}
		if _, ok := vendorStopwords[u]; ok {
			stop++
		}
	}
	if address {
		score -= 5
	}
	switch {
	case isUpper(line):
		score += 4
	case isTitle(tokens):
		score += 2
	}
	if legal {
		score += 4
	}
	score -= float64(stop) * 1.5

	switch n := len(tokens); {
	case n >= 2 && n <= 6:
		score += 3
	case n > 10:
		score -= 4
	}
	return score
}

func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

func isTitle(tokens []string) bool {
	cased := false
	for _, t := range tokens {
		first := true
		for _, r := range t {
			if !unicode.IsLetter(r) {
				first = true
				continue
			}
			if first && unicode.IsLower(r) || !first && unicode.IsUpper(r) {
				return false
			}
			first = false
			cased = true
		}
	}
	return cased
}
