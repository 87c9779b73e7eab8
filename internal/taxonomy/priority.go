package taxonomy

import "strings"

// curatedPriorities pins the crawl tier for well-known ecosystems. Tier 1
// is crawled first; anything unlisted defaults to tier 3.
var curatedPriorities = map[string]int{
	"ethereum":  1,
	"bitcoin":   1,
	"solana":    1,
	"polygon":   2,
	"arbitrum":  2,
	"optimism":  2,
	"uniswap":   2,
	"aave":      2,
	"chainlink": 2,
	"cosmos":    2,
	"polkadot":  2,
	"avalanche": 2,
	"base":      2,
	"starknet":  2,
	"near":      3,
	"sui":       3,
	"aptos":     3,
}

const defaultPriority = 3

// PriorityFor returns the curated crawl tier for an ecosystem name.
func PriorityFor(name string) int {
	if p, ok := curatedPriorities[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	return defaultPriority
}
