package storage

import (
	"context"
	"fmt"
)

// schema is applied on startup; every statement is idempotent so repeated
// boots are safe. Natural-key uniqueness is enforced with expression
// indexes (lowercased usernames and repo names) that the upserts target.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS persons (
		id UUID PRIMARY KEY,
		full_name TEXT NOT NULL,
		first_name TEXT,
		last_name TEXT,
		linkedin_url TEXT UNIQUE,
		normalized_linkedin_url TEXT,
		location TEXT,
		headline TEXT,
		description TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		refreshed_at TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS person_emails (
		id UUID PRIMARY KEY,
		person_id UUID NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
		email TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS person_emails_email_idx ON person_emails (person_id, LOWER(email))`,
	`CREATE INDEX IF NOT EXISTS person_emails_lookup_idx ON person_emails (LOWER(email))`,

	`CREATE TABLE IF NOT EXISTS companies (
		id UUID PRIMARY KEY,
		company_name TEXT NOT NULL,
		company_domain TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS employments (
		id UUID PRIMARY KEY,
		person_id UUID NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
		company_id UUID NOT NULL REFERENCES companies(id),
		title TEXT,
		start_date DATE,
		end_date DATE,
		location TEXT,
		date_precision TEXT NOT NULL DEFAULT 'unknown',
		source_text_ref TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS employments_dedup_idx
		ON employments (person_id, company_id, start_date) WHERE start_date IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS employments_current_idx ON employments (company_id) WHERE end_date IS NULL`,

	`CREATE TABLE IF NOT EXISTS crypto_ecosystems (
		id UUID PRIMARY KEY,
		ecosystem_name TEXT NOT NULL UNIQUE,
		normalized_name TEXT NOT NULL,
		parent_ecosystem_id UUID REFERENCES crypto_ecosystems(id),
		priority_score INT NOT NULL DEFAULT 3 CHECK (priority_score BETWEEN 1 AND 5),
		tags TEXT[] NOT NULL DEFAULT '{}',
		taxonomy_source TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS discovery_sources (
		id UUID PRIMARY KEY,
		source_name TEXT NOT NULL,
		source_type TEXT NOT NULL,
		priority_tier INT NOT NULL DEFAULT 3 CHECK (priority_tier BETWEEN 1 AND 5),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (source_name, source_type)
	)`,

	`CREATE TABLE IF NOT EXISTS github_repositories (
		id UUID PRIMARY KEY,
		full_name TEXT NOT NULL,
		owner_username TEXT NOT NULL,
		description TEXT,
		language TEXT,
		stars INT NOT NULL DEFAULT 0,
		forks INT NOT NULL DEFAULT 0,
		is_fork BOOLEAN NOT NULL DEFAULT false,
		homepage_url TEXT,
		github_created_at TIMESTAMPTZ,
		github_updated_at TIMESTAMPTZ,
		github_pushed_at TIMESTAMPTZ,
		ecosystem_ids UUID[] NOT NULL DEFAULT '{}',
		discovery_source_id UUID REFERENCES discovery_sources(id),
		contributor_count INT NOT NULL DEFAULT 0,
		last_contributor_sync TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS github_repositories_full_name_idx
		ON github_repositories (LOWER(full_name))`,

	`CREATE TABLE IF NOT EXISTS ecosystem_repositories (
		ecosystem_id UUID NOT NULL REFERENCES crypto_ecosystems(id),
		repo_id UUID NOT NULL REFERENCES github_repositories(id),
		PRIMARY KEY (ecosystem_id, repo_id)
	)`,

	`CREATE TABLE IF NOT EXISTS github_profiles (
		id UUID PRIMARY KEY,
		github_username TEXT NOT NULL,
		person_id UUID REFERENCES persons(id) ON DELETE SET NULL,
		name TEXT,
		email TEXT,
		bio TEXT,
		company TEXT,
		location TEXT,
		blog TEXT,
		twitter_username TEXT,
		avatar_url TEXT,
		hireable BOOLEAN,
		followers INT NOT NULL DEFAULT 0,
		following INT NOT NULL DEFAULT 0,
		public_repos INT NOT NULL DEFAULT 0,
		github_created_at TIMESTAMPTZ,
		github_updated_at TIMESTAMPTZ,
		bio_linkedin_url TEXT,
		ecosystem_tags TEXT[] NOT NULL DEFAULT '{}',
		top_languages TEXT,
		last_enriched TIMESTAMPTZ,
		last_error TEXT,
		total_merged_prs INT NOT NULL DEFAULT 0,
		total_lines_contributed INT NOT NULL DEFAULT 0,
		total_stars_earned INT NOT NULL DEFAULT 0,
		contribution_quality_score DOUBLE PRECISION NOT NULL DEFAULT 0
			CHECK (contribution_quality_score BETWEEN 0 AND 100),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS github_profiles_username_idx
		ON github_profiles (LOWER(github_username))`,
	`CREATE INDEX IF NOT EXISTS github_profiles_person_idx ON github_profiles (person_id)`,
	`CREATE INDEX IF NOT EXISTS github_profiles_enrich_idx ON github_profiles (last_enriched)`,

	`CREATE TABLE IF NOT EXISTS github_contributions (
		id UUID PRIMARY KEY,
		github_profile_id UUID NOT NULL REFERENCES github_profiles(id) ON DELETE CASCADE,
		repo_id UUID NOT NULL REFERENCES github_repositories(id),
		contribution_count INT NOT NULL DEFAULT 0,
		merged_pr_count INT NOT NULL DEFAULT 0,
		lines_added INT NOT NULL DEFAULT 0,
		lines_deleted INT NOT NULL DEFAULT 0,
		files_changed INT NOT NULL DEFAULT 0,
		first_contribution_date TIMESTAMPTZ,
		last_contribution_date TIMESTAMPTZ,
		contribution_quality_score DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (github_profile_id, repo_id)
	)`,
	`CREATE INDEX IF NOT EXISTS github_contributions_repo_idx ON github_contributions (repo_id)`,

	`CREATE TABLE IF NOT EXISTS entity_discoveries (
		id UUID PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entity_id UUID NOT NULL,
		source_id UUID NOT NULL REFERENCES discovery_sources(id),
		discovered_via_id UUID,
		discovery_method TEXT NOT NULL,
		metadata_json TEXT,
		discovered_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS skills (
		id UUID PRIMARY KEY,
		skill_name TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL,
		aliases TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS repository_skills (
		id UUID PRIMARY KEY,
		repo_id UUID NOT NULL REFERENCES github_repositories(id),
		skill_id UUID NOT NULL REFERENCES skills(id),
		is_primary BOOLEAN NOT NULL DEFAULT false,
		confidence_score DOUBLE PRECISION NOT NULL CHECK (confidence_score BETWEEN 0 AND 1),
		source TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (repo_id, skill_id)
	)`,

	`CREATE TABLE IF NOT EXISTS person_skills (
		id UUID PRIMARY KEY,
		person_id UUID NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
		skill_id UUID NOT NULL REFERENCES skills(id),
		proficiency_score DOUBLE PRECISION NOT NULL CHECK (proficiency_score BETWEEN 0 AND 100),
		confidence_score DOUBLE PRECISION NOT NULL CHECK (confidence_score BETWEEN 0 AND 1),
		evidence_sources TEXT[] NOT NULL DEFAULT '{}',
		merged_prs_count INT NOT NULL DEFAULT 0,
		repos_using_skill INT NOT NULL DEFAULT 0,
		first_seen TIMESTAMPTZ,
		last_used TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (person_id, skill_id)
	)`,

	`CREATE TABLE IF NOT EXISTS collaboration_edges (
		id UUID PRIMARY KEY,
		src_person_id UUID NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
		dst_person_id UUID NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
		shared_repos INT NOT NULL DEFAULT 0,
		shared_contributions INT NOT NULL DEFAULT 0,
		first_collaboration_date TIMESTAMPTZ,
		last_collaboration_date TIMESTAMPTZ,
		collaboration_months INT NOT NULL DEFAULT 0,
		repos_list UUID[] NOT NULL DEFAULT '{}',
		top_shared_repos TEXT,
		collaboration_strength DOUBLE PRECISION CHECK (collaboration_strength BETWEEN 0 AND 1),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (src_person_id, dst_person_id),
		CHECK (src_person_id < dst_person_id)
	)`,

	`CREATE TABLE IF NOT EXISTS review_notes (
		id UUID PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entity_id UUID NOT NULL,
		note TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate applies the schema. Safe to run on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	s.logger.Info("schema applied", "statements", len(schema))
	return nil
}
