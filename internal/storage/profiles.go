package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/talentgraph/talentgraph-go/internal/models"
)

// UpsertProfileMinimal records a profile discovered via a contributor list:
// username, avatar and ecosystem tags only. Returns the profile id and
// whether the row was newly created. Existing fields are never clobbered;
// tags are unioned.
func (s *Store) UpsertProfileMinimal(ctx context.Context, username, avatarURL string, tags []string) (uuid.UUID, bool, error) {
	if tags == nil {
		tags = []string{}
	}
	query := `
		INSERT INTO github_profiles (id, github_username, avatar_url, ecosystem_tags, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, now(), now())
		ON CONFLICT (LOWER(github_username)) DO UPDATE SET
			avatar_url = COALESCE(github_profiles.avatar_url, EXCLUDED.avatar_url),
			ecosystem_tags = ARRAY(
				SELECT DISTINCT t FROM unnest(github_profiles.ecosystem_tags || EXCLUDED.ecosystem_tags) AS t
			),
			updated_at = now()
		RETURNING id, (xmax = 0) AS inserted
	`
	var id uuid.UUID
	var inserted bool
	err := s.db.QueryRowxContext(ctx, query, uuid.New(), username, avatarURL, pq.StringArray(tags)).
		Scan(&id, &inserted)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("upsert profile %s: %w", username, err)
	}
	return id, inserted, nil
}

// MergeEnrichedProfile folds freshly fetched user data into a profile row.
// Existing non-null fields win (COALESCE semantics); counters take the
// greater of both sides; last_enriched advances to now and never moves
// backward.
func (s *Store) MergeEnrichedProfile(ctx context.Context, p *models.GitHubProfile) error {
	query := `
		UPDATE github_profiles SET
			name = COALESCE(github_profiles.name, :name),
			email = COALESCE(github_profiles.email, :email),
			bio = COALESCE(github_profiles.bio, :bio),
			company = COALESCE(github_profiles.company, :company),
			location = COALESCE(github_profiles.location, :location),
			blog = COALESCE(github_profiles.blog, :blog),
			twitter_username = COALESCE(github_profiles.twitter_username, :twitter_username),
			avatar_url = COALESCE(github_profiles.avatar_url, :avatar_url),
			hireable = COALESCE(github_profiles.hireable, :hireable),
			followers = GREATEST(github_profiles.followers, :followers),
			following = GREATEST(github_profiles.following, :following),
			public_repos = GREATEST(github_profiles.public_repos, :public_repos),
			github_created_at = COALESCE(github_profiles.github_created_at, :github_created_at),
			github_updated_at = COALESCE(:github_updated_at, github_profiles.github_updated_at),
			bio_linkedin_url = COALESCE(:bio_linkedin_url, github_profiles.bio_linkedin_url),
			top_languages = COALESCE(:top_languages, github_profiles.top_languages),
			updated_at = now()
		WHERE id = :id
	`
	if _, err := s.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("merge enriched profile %s: %w", p.GithubUsername, err)
	}
	return nil
}

// MarkEnriched finalizes one enrichment attempt. Success advances the
// last_enriched watermark (never backward) and clears the error; failure
// leaves the watermark untouched so the profile is retried naturally,
// except for permanent errors (user gone) where the watermark advances to
// avoid tight loops.
func (s *Store) MarkEnriched(ctx context.Context, profileID uuid.UUID, ok bool, errMsg string, advanceOnError bool) error {
	var query string
	switch {
	case ok:
		query = `
			UPDATE github_profiles
			SET last_enriched = GREATEST(COALESCE(last_enriched, 'epoch'::timestamptz), now()),
			    last_error = NULL, updated_at = now()
			WHERE id = $1`
		if _, err := s.db.ExecContext(ctx, query, profileID); err != nil {
			return fmt.Errorf("mark enriched %s: %w", profileID, err)
		}
	case advanceOnError:
		query = `
			UPDATE github_profiles
			SET last_enriched = GREATEST(COALESCE(last_enriched, 'epoch'::timestamptz), now()),
			    last_error = $2, updated_at = now()
			WHERE id = $1`
		if _, err := s.db.ExecContext(ctx, query, profileID, errMsg); err != nil {
			return fmt.Errorf("mark enriched with error %s: %w", profileID, err)
		}
	default:
		query = `UPDATE github_profiles SET last_error = $2, updated_at = now() WHERE id = $1`
		if _, err := s.db.ExecContext(ctx, query, profileID, errMsg); err != nil {
			return fmt.Errorf("mark enrichment failure %s: %w", profileID, err)
		}
	}
	return nil
}

// AppendEcosystemTags unions tags onto a profile.
func (s *Store) AppendEcosystemTags(ctx context.Context, profileID uuid.UUID, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE github_profiles
		SET ecosystem_tags = ARRAY(
			SELECT DISTINCT t FROM unnest(ecosystem_tags || $2::text[]) AS t
		), updated_at = now()
		WHERE id = $1
	`, profileID, pq.StringArray(tags))
	if err != nil {
		return fmt.Errorf("append ecosystem tags %s: %w", profileID, err)
	}
	return nil
}

// GetProfile fetches a profile by id.
func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (*models.GitHubProfile, error) {
	var p models.GitHubProfile
	err := s.db.GetContext(ctx, &p, `SELECT * FROM github_profiles WHERE id = $1`, id)
	if err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get profile %s: %w", id, err)
	}
	return &p, nil
}

// GetProfileByUsername fetches a profile by its case-insensitive username.
func (s *Store) GetProfileByUsername(ctx context.Context, username string) (*models.GitHubProfile, error) {
	var p models.GitHubProfile
	err := s.db.GetContext(ctx, &p,
		`SELECT * FROM github_profiles WHERE LOWER(github_username) = LOWER($1)`, username)
	if err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get profile %s: %w", username, err)
	}
	return &p, nil
}

// GetEnrichmentBatch returns the next profiles needing enrichment, ordered
// by priority score then followers. A profile needs enrichment when it was
// never enriched, its watermark is older than the staleness window, or it
// still lacks both bio and email.
func (s *Store) GetEnrichmentBatch(ctx context.Context, n, staleDays int) ([]models.GitHubProfile, error) {
	query := `
		SELECT * FROM github_profiles
		WHERE last_enriched IS NULL
		   OR last_enriched < now() - make_interval(days => $2)
		   OR (bio IS NULL AND email IS NULL)
		ORDER BY (
			  (CASE WHEN email IS NOT NULL THEN 10 ELSE 0 END)
			+ (CASE WHEN location IS NOT NULL THEN 5 ELSE 0 END)
			+ (CASE WHEN followers > 1000 THEN 8
			        WHEN followers BETWEEN 100 AND 1000 THEN 4
			        ELSE 0 END)
			+ (CASE WHEN bio IS NOT NULL OR name IS NOT NULL OR company IS NOT NULL THEN 3 ELSE 0 END)
		) DESC, followers DESC
		LIMIT $1
	`
	var profiles []models.GitHubProfile
	if err := s.db.SelectContext(ctx, &profiles, query, n, staleDays); err != nil {
		return nil, fmt.Errorf("get enrichment batch: %w", err)
	}
	return profiles, nil
}

// ListUnmatchedProfiles returns enriched profiles without a person link,
// best-known first.
func (s *Store) ListUnmatchedProfiles(ctx context.Context, limit int) ([]models.GitHubProfile, error) {
	query := `
		SELECT * FROM github_profiles
		WHERE person_id IS NULL AND last_enriched IS NOT NULL
		ORDER BY followers DESC, github_username ASC
	`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	var profiles []models.GitHubProfile
	if err := s.db.SelectContext(ctx, &profiles, query, args...); err != nil {
		return nil, fmt.Errorf("list unmatched profiles: %w", err)
	}
	return profiles, nil
}

// LinkProfileToPerson writes the resolver's verdict. Existing links are
// preserved; a re-match to a different person is the caller's conflict to
// log, not this method's to apply.
func (s *Store) LinkProfileToPerson(ctx context.Context, profileID, personID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE github_profiles SET person_id = $2, updated_at = now()
		WHERE id = $1 AND (person_id IS NULL OR person_id = $2)
	`, profileID, personID)
	if err != nil {
		return fmt.Errorf("link profile %s to person %s: %w", profileID, personID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("link profile %s: conflicting existing link", profileID)
	}
	return nil
}

// LoadProfileCache returns lowercased username -> id for every profile.
func (s *Store) LoadProfileCache(ctx context.Context) (map[string]uuid.UUID, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT LOWER(github_username), id FROM github_profiles`)
	if err != nil {
		return nil, fmt.Errorf("load profile cache: %w", err)
	}
	defer rows.Close()
	cache := make(map[string]uuid.UUID)
	for rows.Next() {
		var username string
		var id uuid.UUID
		if err := rows.Scan(&username, &id); err != nil {
			return nil, fmt.Errorf("load profile cache: %w", err)
		}
		cache[username] = id
	}
	return cache, rows.Err()
}

// EnrichmentStatus summarizes queue state for the status command.
type EnrichmentStatus struct {
	Total      int `db:"total"`
	Enriched   int `db:"enriched"`
	Stale      int `db:"stale"`
	Unenriched int `db:"unenriched"`
	Linked     int `db:"linked"`
}

// GetEnrichmentStatus counts profiles per enrichment state.
func (s *Store) GetEnrichmentStatus(ctx context.Context, staleDays int) (*EnrichmentStatus, error) {
	var st EnrichmentStatus
	err := s.db.GetContext(ctx, &st, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE last_enriched IS NOT NULL) AS enriched,
			COUNT(*) FILTER (WHERE last_enriched IS NOT NULL
				AND last_enriched < now() - make_interval(days => $1)) AS stale,
			COUNT(*) FILTER (WHERE last_enriched IS NULL) AS unenriched,
			COUNT(*) FILTER (WHERE person_id IS NOT NULL) AS linked
		FROM github_profiles
	`, staleDays)
	if err != nil {
		return nil, fmt.Errorf("enrichment status: %w", err)
	}
	return &st, nil
}
