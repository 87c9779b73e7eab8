package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/talentgraph/talentgraph-go/internal/models"
)

// UpsertSkill seeds a skill keyed on its name; aliases are unioned so
// catalog updates extend rather than replace.
func (s *Store) UpsertSkill(ctx context.Context, skill *models.Skill) (uuid.UUID, error) {
	if skill.ID == uuid.Nil {
		skill.ID = uuid.New()
	}
	query := `
		INSERT INTO skills (id, skill_name, category, aliases, created_at)
		VALUES (:id, :skill_name, :category, :aliases, now())
		ON CONFLICT (skill_name) DO UPDATE SET
			category = skills.category,
			aliases = ARRAY(
				SELECT DISTINCT a FROM unnest(skills.aliases || EXCLUDED.aliases) AS a
			)
		RETURNING id
	`
	rows, err := s.db.NamedQueryContext(ctx, query, skill)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert skill %s: %w", skill.SkillName, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return uuid.Nil, fmt.Errorf("upsert skill %s: no id returned", skill.SkillName)
	}
	var id uuid.UUID
	if err := rows.Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("upsert skill %s: %w", skill.SkillName, err)
	}
	skill.ID = id
	return id, nil
}

// LoadSkillCache returns a lowercased name-or-alias -> skill id map.
func (s *Store) LoadSkillCache(ctx context.Context) (map[string]uuid.UUID, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT id, skill_name, aliases FROM skills`)
	if err != nil {
		return nil, fmt.Errorf("load skill cache: %w", err)
	}
	defer rows.Close()
	cache := make(map[string]uuid.UUID)
	for rows.Next() {
		var id uuid.UUID
		var name string
		var aliases pq.StringArray
		if err := rows.Scan(&id, &name, &aliases); err != nil {
			return nil, fmt.Errorf("load skill cache: %w", err)
		}
		cache[strings.ToLower(name)] = id
		for _, a := range aliases {
			cache[strings.ToLower(a)] = id
		}
	}
	return cache, rows.Err()
}

// RepoLanguage is a repository still lacking a language-derived skill tag.
type RepoLanguage struct {
	RepoID   uuid.UUID `db:"id"`
	Language string    `db:"language"`
}

// ListReposWithoutSkills returns repositories that have a primary language
// but no repository_skills row yet.
func (s *Store) ListReposWithoutSkills(ctx context.Context) ([]RepoLanguage, error) {
	var out []RepoLanguage
	err := s.db.SelectContext(ctx, &out, `
		SELECT r.id, r.language FROM github_repositories r
		WHERE r.language IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM repository_skills rs WHERE rs.repo_id = r.id)
	`)
	if err != nil {
		return nil, fmt.Errorf("list repos without skills: %w", err)
	}
	return out, nil
}

// InsertRepositorySkill tags a repository with a skill; replays are no-ops.
func (s *Store) InsertRepositorySkill(ctx context.Context, rs *models.RepositorySkill) error {
	if rs.ID == uuid.Nil {
		rs.ID = uuid.New()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO repository_skills (id, repo_id, skill_id, is_primary, confidence_score, source, created_at)
		VALUES (:id, :repo_id, :skill_id, :is_primary, :confidence_score, :source, now())
		ON CONFLICT (repo_id, skill_id) DO NOTHING
	`, rs)
	if err != nil {
		return fmt.Errorf("insert repository skill repo=%s: %w", rs.RepoID, err)
	}
	return nil
}

// PersonSkillEvidence is one (person, skill) aggregate derived from the
// contribution graph.
type PersonSkillEvidence struct {
	PersonID      uuid.UUID  `db:"person_id"`
	SkillID       uuid.UUID  `db:"skill_id"`
	RepoCount     int        `db:"repo_count"`
	Contributions int        `db:"contributions"`
	MergedPRs     int        `db:"merged_prs"`
	FirstSeen     *time.Time `db:"first_seen"`
	LastUsed      *time.Time `db:"last_used"`
}

// AggregatePersonSkillEvidence walks contributions of person-linked profiles
// through the primary repository skill tags and groups per (person, skill).
// Secondary language tags never count as skill evidence.
func (s *Store) AggregatePersonSkillEvidence(ctx context.Context) ([]PersonSkillEvidence, error) {
	var out []PersonSkillEvidence
	err := s.db.SelectContext(ctx, &out, `
		SELECT p.person_id,
		       rs.skill_id,
		       COUNT(DISTINCT c.repo_id)::int AS repo_count,
		       SUM(c.contribution_count)::int AS contributions,
		       SUM(c.merged_pr_count)::int AS merged_prs,
		       MIN(c.first_contribution_date) AS first_seen,
		       MAX(c.last_contribution_date) AS last_used
		FROM github_contributions c
		JOIN github_profiles p ON p.id = c.github_profile_id AND p.person_id IS NOT NULL
		JOIN repository_skills rs ON rs.repo_id = c.repo_id AND rs.is_primary
		GROUP BY p.person_id, rs.skill_id
	`)
	if err != nil {
		return nil, fmt.Errorf("aggregate person skill evidence: %w", err)
	}
	return out, nil
}

// UpsertPersonSkill merges fresh evidence into a person's skill row. The
// proficiency score never drops below its current value; confidence averages
// toward the new reading and stays within [0, 1].
func (s *Store) UpsertPersonSkill(ctx context.Context, ps *models.PersonSkill) error {
	if ps.ID == uuid.Nil {
		ps.ID = uuid.New()
	}
	query := `
		INSERT INTO person_skills (
			id, person_id, skill_id, proficiency_score, confidence_score,
			evidence_sources, merged_prs_count, repos_using_skill,
			first_seen, last_used, created_at, updated_at
		) VALUES (
			:id, :person_id, :skill_id, :proficiency_score, :confidence_score,
			:evidence_sources, :merged_prs_count, :repos_using_skill,
			:first_seen, :last_used, now(), now()
		)
		ON CONFLICT (person_id, skill_id) DO UPDATE SET
			proficiency_score = GREATEST(
				person_skills.proficiency_score,
				(person_skills.proficiency_score + EXCLUDED.proficiency_score) / 2
			),
			confidence_score = LEAST(
				(person_skills.confidence_score + EXCLUDED.confidence_score) / 2, 1.0
			),
			evidence_sources = ARRAY(
				SELECT DISTINCT e FROM unnest(person_skills.evidence_sources || EXCLUDED.evidence_sources) AS e
			),
			merged_prs_count = GREATEST(person_skills.merged_prs_count, EXCLUDED.merged_prs_count),
			repos_using_skill = GREATEST(person_skills.repos_using_skill, EXCLUDED.repos_using_skill),
			first_seen = LEAST(
				COALESCE(person_skills.first_seen, EXCLUDED.first_seen),
				COALESCE(EXCLUDED.first_seen, person_skills.first_seen)
			),
			last_used = GREATEST(
				COALESCE(person_skills.last_used, EXCLUDED.last_used),
				COALESCE(EXCLUDED.last_used, person_skills.last_used)
			),
			updated_at = now()
	`
	if _, err := s.db.NamedExecContext(ctx, query, ps); err != nil {
		return fmt.Errorf("upsert person skill person=%s skill=%s: %w", ps.PersonID, ps.SkillID, err)
	}
	return nil
}

// CountPersonSkills returns the number of person-skill rows, for status.
func (s *Store) CountPersonSkills(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM person_skills`); err != nil {
		return 0, fmt.Errorf("count person skills: %w", err)
	}
	return n, nil
}
