package collab

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/talentgraph/talentgraph-go/internal/checkpoint"
	"github.com/talentgraph/talentgraph-go/internal/logging"
	"github.com/talentgraph/talentgraph-go/internal/models"
	"github.com/talentgraph/talentgraph-go/internal/storage"
)

// Store is the persistence surface the builder needs.
type Store interface {
	ListCollabRepos(ctx context.Context, minLinked int, ecosystem string) ([]storage.CollabRepo, error)
	ListLinkedContributions(ctx context.Context, repoID uuid.UUID) ([]storage.PersonContribution, error)
	UpsertCollaborationEdge(ctx context.Context, e *models.CollaborationEdge) error
	FinalizeStrengths(ctx context.Context) (int, error)
}

// Stats counts what one build did.
type Stats struct {
	ReposProcessed int
	Pairs          int
	EdgesScored    int
}

const (
	checkpointSubsystem = "collab"
	checkpointEvery     = 100
)

// Builder turns repository co-contribution into a symmetric weighted graph
// between persons. Edges are aggregations with commuting conflict rules, so
// repos can be processed in any order; the strength pass runs once at the
// end over everything the build touched.
type Builder struct {
	store       Store
	checkpoints *checkpoint.Store
	logger      *logging.Logger
}

func NewBuilder(store Store, cps *checkpoint.Store, logger *logging.Logger) *Builder {
	return &Builder{store: store, checkpoints: cps, logger: logger}
}

// Run builds edges for every repo with at least minContributors linked
// contributors, optionally restricted to one ecosystem. limit <= 0 means
// all.
func (b *Builder) Run(ctx context.Context, ecosystem string, minContributors, limit int) (*Stats, error) {
	if minContributors < 2 {
		minContributors = 2
	}
	stats := &Stats{}

	repos, err := b.store.ListCollabRepos(ctx, minContributors, ecosystem)
	if err != nil {
		return stats, err
	}
	if limit > 0 && limit < len(repos) {
		repos = repos[:limit]
	}
	if len(repos) == 0 {
		b.logger.Info("no repositories with enough linked contributors", "min", minContributors)
		return stats, nil
	}

	cp, err := b.checkpoints.Load(checkpointSubsystem)
	if err != nil {
		return stats, err
	}
	done := cp.DoneSet()

	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			b.save(cp, stats)
			return stats, err
		}
		if done[repo.ID.String()] {
			continue
		}
		pairs, err := b.buildRepo(ctx, repo)
		if err != nil {
			b.save(cp, stats)
			return stats, err
		}
		stats.Pairs += pairs
		stats.ReposProcessed++
		cp.MarkDone(repo.ID.String())
		if stats.ReposProcessed%checkpointEvery == 0 {
			b.save(cp, stats)
			b.logger.Info("collaboration build progress",
				"repos", stats.ReposProcessed, "total", len(repos), "pairs", stats.Pairs)
		}
	}

	scored, err := b.store.FinalizeStrengths(ctx)
	if err != nil {
		b.save(cp, stats)
		return stats, err
	}
	stats.EdgesScored = scored

	if err := b.checkpoints.Clear(checkpointSubsystem); err != nil {
		b.logger.Warn("checkpoint clear failed", "error", err)
	}
	b.logger.Info("collaboration build finished",
		"repos", stats.ReposProcessed, "pairs", stats.Pairs, "edges_scored", scored)
	return stats, nil
}

func (b *Builder) buildRepo(ctx context.Context, repo storage.CollabRepo) (int, error) {
	contribs, err := b.store.ListLinkedContributions(ctx, repo.ID)
	if err != nil {
		return 0, err
	}
	pairs := 0
	for i := 0; i < len(contribs); i++ {
		for j := i + 1; j < len(contribs); j++ {
			a, c := contribs[i], contribs[j]
			if a.PersonID == c.PersonID {
				continue
			}
			edge := pairEdge(repo, a, c)
			if err := b.store.UpsertCollaborationEdge(ctx, edge); err != nil {
				return pairs, err
			}
			pairs++
		}
	}
	return pairs, nil
}

// pairEdge computes one repo's evidence for a pair, canonically ordered.
func pairEdge(repo storage.CollabRepo, a, b storage.PersonContribution) *models.CollaborationEdge {
	src, dst := a.PersonID, b.PersonID
	if dst.String() < src.String() {
		src, dst = dst, src
	}

	shared := a.ContributionCount + b.ContributionCount
	overlapStart, overlapEnd, months := overlap(a.FirstDate, a.LastDate, b.FirstDate, b.LastDate)

	top, _ := json.Marshal([]models.SharedRepo{{RepoName: repo.FullName, Contributions: shared}})
	topJSON := string(top)

	return &models.CollaborationEdge{
		SrcPersonID:            src,
		DstPersonID:            dst,
		SharedRepos:            1,
		SharedContributions:    shared,
		FirstCollaborationDate: overlapStart,
		LastCollaborationDate:  overlapEnd,
		CollaborationMonths:    months,
		ReposList:              models.UUIDArray{repo.ID},
		TopSharedRepos:         &topJSON,
	}
}

// overlap computes the joint activity window of two contributors. Months is
// at least 1 for any valid overlap and 0 when the windows are unknown or
// disjoint.
func overlap(firstA, lastA, firstB, lastB *time.Time) (start, end *time.Time, months int) {
	if firstA == nil || lastA == nil || firstB == nil || lastB == nil {
		return nil, nil, 0
	}
	s := *firstA
	if firstB.After(s) {
		s = *firstB
	}
	e := *lastA
	if lastB.Before(e) {
		e = *lastB
	}
	if e.Before(s) {
		return nil, nil, 0
	}
	days := int(e.Sub(s).Hours() / 24)
	months = days / 30
	if months < 1 {
		months = 1
	}
	return &s, &e, months
}

func (b *Builder) save(cp *checkpoint.Checkpoint, stats *Stats) {
	cp.Counters = map[string]int{
		"repos_processed": stats.ReposProcessed,
		"pairs":           stats.Pairs,
	}
	if err := b.checkpoints.Save(cp); err != nil {
		b.logger.Warn("checkpoint save failed", "error", err)
	}
}
