package reconcile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/talentgraph/talentgraph-go/internal/logging"
	"github.com/talentgraph/talentgraph-go/internal/match"
	"github.com/talentgraph/talentgraph-go/internal/models"
	"github.com/talentgraph/talentgraph-go/internal/storage"
)

// Store is the persistence surface reconciliation needs.
type Store interface {
	FindPersonByLinkedinSlug(ctx context.Context, normalizedURL string) (*models.Person, error)
	PersonHasContributions(ctx context.Context, personID uuid.UUID) (bool, error)
	DeletePersonCascade(ctx context.Context, personID uuid.UUID) error
	InsertReviewNote(ctx context.Context, entityType string, entityID uuid.UUID, note string) error
}

// Action is one planned or applied decision, printable as a diff line.
type Action struct {
	Slug     string
	PersonID uuid.UUID
	Verb     string // "delete" or "review"
}

// Stats counts what one reconciliation run did.
type Stats struct {
	Rows     int
	Flagged  int
	Deleted  int
	Reviewed int
	NotFound int
	Actions  []Action
}

var goneErrorPattern = regexp.MustCompile(`^No Linkedin profile found for (\S+)$`)

// Reconciler applies the scraper's "profile gone" verdicts: persons whose
// LinkedIn profile disappeared are deleted unless they have GitHub
// contributions, in which case they are flagged for human review instead.
type Reconciler struct {
	store  Store
	logger *logging.Logger

	DryRun bool
}

func NewReconciler(store Store, logger *logging.Logger) *Reconciler {
	return &Reconciler{store: store, logger: logger}
}

// Run processes the CSV at path. The file must carry an "error" column;
// rows whose error is not a profile-gone verdict are ignored.
func (r *Reconciler) Run(ctx context.Context, path string) (*Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reconciliation csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	errCol := -1
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), "error") {
			errCol = i
		}
	}
	if errCol == -1 {
		return nil, fmt.Errorf("csv has no %q column", "error")
	}

	stats := &Stats{}
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read csv row: %w", err)
		}
		stats.Rows++
		if errCol >= len(row) {
			continue
		}
		m := goneErrorPattern.FindStringSubmatch(strings.TrimSpace(row[errCol]))
		if m == nil {
			continue
		}
		stats.Flagged++
		if err := r.reconcileOne(ctx, m[1], stats); err != nil {
			return stats, err
		}
	}

	r.logger.Info("reconciliation finished",
		"rows", stats.Rows,
		"flagged", stats.Flagged,
		"deleted", stats.Deleted,
		"reviewed", stats.Reviewed,
		"not_found", stats.NotFound,
		"dry_run", r.DryRun)
	return stats, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, slug string, stats *Stats) error {
	normalized := match.NormalizeLinkedIn("linkedin.com/in/" + slug)
	if normalized == "" {
		stats.NotFound++
		return nil
	}
	person, err := r.store.FindPersonByLinkedinSlug(ctx, normalized)
	if err != nil {
		if err == storage.ErrNotFound {
			stats.NotFound++
			return nil
		}
		return err
	}

	hasContribs, err := r.store.PersonHasContributions(ctx, person.ID)
	if err != nil {
		return err
	}

	if hasContribs {
		stats.Reviewed++
		stats.Actions = append(stats.Actions, Action{Slug: slug, PersonID: person.ID, Verb: "review"})
		if r.DryRun {
			return nil
		}
		note := fmt.Sprintf("linkedin profile gone (%s) but person has github contributions; review before deleting", slug)
		return r.store.InsertReviewNote(ctx, "person", person.ID, note)
	}

	stats.Deleted++
	stats.Actions = append(stats.Actions, Action{Slug: slug, PersonID: person.ID, Verb: "delete"})
	if r.DryRun {
		return nil
	}
	r.logger.Info("deleting person with gone linkedin profile",
		"person_id", person.ID.String(), "slug", slug)
	return r.store.DeletePersonCascade(ctx, person.ID)
}

// Diff renders the planned actions, one per line.
func (s *Stats) Diff() string {
	var b strings.Builder
	for _, a := range s.Actions {
		fmt.Fprintf(&b, "%-7s %s  (%s)\n", a.Verb, a.PersonID, a.Slug)
	}
	return b.String()
}
