package taxonomy

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/talentgraph/talentgraph-go/internal/logging"
	"github.com/talentgraph/talentgraph-go/internal/models"
)

// Store is the persistence surface the importer needs.
type Store interface {
	UpsertEcosystem(ctx context.Context, e *models.CryptoEcosystem) (uuid.UUID, error)
	UpsertRepository(ctx context.Context, repo *models.GitHubRepository) (uuid.UUID, error)
	LinkEcosystemRepo(ctx context.Context, ecosystemID, repoID uuid.UUID) error
	UpsertDiscoverySource(ctx context.Context, name, sourceType string, tier int) (uuid.UUID, error)
}

// Record is one line of the taxonomy JSONL export.
type Record struct {
	EcoName string   `json:"eco_name"`
	RepoURL string   `json:"repo_url"`
	Branch  []string `json:"branch"`
	Tags    []string `json:"tags"`
}

// Stats counts what one import run did.
type Stats struct {
	Ecosystems    int
	SubEcosystems int
	Repos         int
	Links         int
	Malformed     int
	SkippedByTier int
}

// Importer reads an ecosystem taxonomy export and seeds the ecosystem and
// repository stores. Replaying the same export is a no-op.
type Importer struct {
	store  Store
	logger *logging.Logger
	source string
}

func NewImporter(store Store, logger *logging.Logger) *Importer {
	return &Importer{store: store, logger: logger, source: models.SourceElectricCapitalTaxonomy}
}

type group struct {
	branches map[string]bool
	repos    []string
	tags     map[string]bool
}

// Run imports the JSONL file at path. With priorityOnly set, only
// ecosystems at priority tier 1 or 2 are imported.
func (im *Importer) Run(ctx context.Context, path string, priorityOnly bool) (*Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open taxonomy export: %w", err)
	}
	defer f.Close()

	stats := &Stats{}
	groups := make(map[string]*group)
	order := []string{}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			stats.Malformed++
			continue
		}
		if rec.EcoName == "" {
			stats.Malformed++
			continue
		}
		g, ok := groups[rec.EcoName]
		if !ok {
			g = &group{branches: map[string]bool{}, tags: map[string]bool{}}
			groups[rec.EcoName] = g
			order = append(order, rec.EcoName)
		}
		if rec.RepoURL != "" {
			g.repos = append(g.repos, rec.RepoURL)
		}
		for _, b := range rec.Branch {
			if b != "" && b != rec.EcoName {
				g.branches[b] = true
			}
		}
		for _, t := range rec.Tags {
			if t != "" {
				g.tags[t] = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read taxonomy export: %w", err)
	}

	sourceID, err := im.store.UpsertDiscoverySource(ctx, "electric_capital", im.source, 1)
	if err != nil {
		return nil, err
	}

	sort.Strings(order)
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		g := groups[name]
		priority := PriorityFor(name)
		if priorityOnly && priority > 2 {
			stats.SkippedByTier++
			continue
		}
		if err := im.importEcosystem(ctx, name, g, priority, sourceID, stats); err != nil {
			return stats, err
		}
	}

	im.logger.Info("taxonomy import finished",
		"ecosystems", stats.Ecosystems,
		"sub_ecosystems", stats.SubEcosystems,
		"repos", stats.Repos,
		"links", stats.Links,
		"malformed", stats.Malformed,
		"skipped_by_tier", stats.SkippedByTier)
	return stats, nil
}

func (im *Importer) importEcosystem(ctx context.Context, name string, g *group, priority int, sourceID uuid.UUID, stats *Stats) error {
	tags := make([]string, 0, len(g.tags))
	for t := range g.tags {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	src := im.source
	eco := &models.CryptoEcosystem{
		EcosystemName:  name,
		NormalizedName: NormalizeName(name),
		PriorityScore:  priority,
		Tags:           pq.StringArray(tags),
		TaxonomySource: &src,
	}
	ecoID, err := im.store.UpsertEcosystem(ctx, eco)
	if err != nil {
		return err
	}
	stats.Ecosystems++

	branches := make([]string, 0, len(g.branches))
	for b := range g.branches {
		branches = append(branches, b)
	}
	sort.Strings(branches)
	for _, b := range branches {
		sub := &models.CryptoEcosystem{
			EcosystemName:     b,
			NormalizedName:    NormalizeName(b),
			ParentEcosystemID: &ecoID,
			PriorityScore:     PriorityFor(b),
			Tags:              pq.StringArray{},
			TaxonomySource:    &src,
		}
		if _, err := im.store.UpsertEcosystem(ctx, sub); err != nil {
			return err
		}
		stats.SubEcosystems++
	}

	for _, rawURL := range g.repos {
		owner, repoName, ok := ParseRepoURL(rawURL)
		if !ok {
			stats.Malformed++
			im.logger.Debug("skipping malformed repo url", "url", rawURL, "ecosystem", name)
			continue
		}
		repo := &models.GitHubRepository{
			FullName:          owner + "/" + repoName,
			OwnerUsername:     owner,
			EcosystemIDs:      models.UUIDArray{ecoID},
			DiscoverySourceID: &sourceID,
		}
		repoID, err := im.store.UpsertRepository(ctx, repo)
		if err != nil {
			return err
		}
		stats.Repos++
		if err := im.store.LinkEcosystemRepo(ctx, ecoID, repoID); err != nil {
			return err
		}
		stats.Links++
	}
	return nil
}

// ParseRepoURL accepts only https://github.com/<owner>/<name> URLs and
// returns the owner and repo name. Anything else is rejected.
func ParseRepoURL(raw string) (owner, name string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", false
	}
	if u.Scheme != "https" || !strings.EqualFold(u.Host, "github.com") {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	name = strings.TrimSuffix(parts[1], ".git")
	if name == "" {
		return "", "", false
	}
	return parts[0], name, true
}

// stop-suffixes dropped when normalizing ecosystem names.
var stopSuffixes = []string{"labs", "network", "protocol", "foundation", "chain"}

// NormalizeName lowercases an ecosystem name and strips trailing
// stop-suffix words. Idempotent.
func NormalizeName(name string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	for len(words) > 1 {
		last := words[len(words)-1]
		stripped := false
		for _, suf := range stopSuffixes {
			if last == suf {
				words = words[:len(words)-1]
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}
	return strings.Join(words, " ")
}
