package match

import (
	"sort"
	"strings"
)

// Ratio scores the similarity of two strings in [0, 1] as
// 2 × LCS / (len(a) + len(b)), the classic sequence-matcher measure.
func Ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	return 2 * float64(lcs(a, b)) / float64(len(a)+len(b))
}

// TokenSortRatio compares the strings with their whitespace tokens sorted,
// so word order does not matter: "smith john" scores 1.0 against
// "john smith".
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortTokens(a), sortTokens(b))
}

// PartialRatio slides the shorter string across the longer one and returns
// the best window score, so "acme" scores 1.0 against "acme corporation".
func PartialRatio(a, b string) float64 {
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == 0 {
		return 0
	}
	if len(shorter) == len(longer) {
		return Ratio(shorter, longer)
	}
	best := 0.0
	for i := 0; i+len(shorter) <= len(longer); i++ {
		if r := Ratio(shorter, longer[i:i+len(shorter)]); r > best {
			best = r
			if best == 1 {
				break
			}
		}
	}
	return best
}

// CompanyRatio is the score the cascade uses for company names: the better
// of token-sort and partial ratios over normalized inputs.
func CompanyRatio(a, b string) float64 {
	na, nb := NormalizeCompany(a), NormalizeCompany(b)
	if na == "" || nb == "" {
		return 0
	}
	ts := TokenSortRatio(na, nb)
	if pr := PartialRatio(na, nb); pr > ts {
		return pr
	}
	return ts
}

// NameRatio scores two person names, case-insensitive and word-order
// agnostic.
func NameRatio(a, b string) float64 {
	return TokenSortRatio(strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b)))
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// lcs computes the longest common subsequence length with a rolling row.
func lcs(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
