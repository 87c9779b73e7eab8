package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/talentgraph/talentgraph-go/internal/models"
)

// PersonCandidate is a person row paired with one current employer, as
// consumed by the match cascade.
type PersonCandidate struct {
	models.Person
	CompanyName *string `db:"company_name"`
}

// FindPersonsByEmail returns the persons owning an email address,
// case-insensitively.
func (s *Store) FindPersonsByEmail(ctx context.Context, email string) ([]models.Person, error) {
	var out []models.Person
	err := s.db.SelectContext(ctx, &out, `
		SELECT p.* FROM persons p
		JOIN person_emails pe ON pe.person_id = p.id
		WHERE LOWER(pe.email) = LOWER($1)
	`, email)
	if err != nil {
		return nil, fmt.Errorf("find persons by email: %w", err)
	}
	return out, nil
}

// FindPersonByLinkedinSlug returns the person whose normalized LinkedIn URL
// matches, or ErrNotFound.
func (s *Store) FindPersonByLinkedinSlug(ctx context.Context, normalizedURL string) (*models.Person, error) {
	var p models.Person
	err := s.db.GetContext(ctx, &p,
		`SELECT * FROM persons WHERE normalized_linkedin_url = $1`, normalizedURL)
	if err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find person by linkedin %s: %w", normalizedURL, err)
	}
	return &p, nil
}

// FindPersonsByName returns persons whose full name matches
// case-insensitively, each with one current employer (null when none).
func (s *Store) FindPersonsByName(ctx context.Context, fullName string) ([]PersonCandidate, error) {
	var out []PersonCandidate
	err := s.db.SelectContext(ctx, &out, `
		SELECT p.*, c.company_name
		FROM persons p
		LEFT JOIN LATERAL (
			SELECT co.company_name FROM employments e
			JOIN companies co ON co.id = e.company_id
			WHERE e.person_id = p.id AND e.end_date IS NULL
			ORDER BY e.start_date DESC NULLS LAST
			LIMIT 1
		) c ON true
		WHERE LOWER(p.full_name) = LOWER($1)
	`, fullName)
	if err != nil {
		return nil, fmt.Errorf("find persons by name: %w", err)
	}
	return out, nil
}

// FindPersonsByNameAndLocation returns exact-name candidates whose location
// contains the given fragment, case-insensitively.
func (s *Store) FindPersonsByNameAndLocation(ctx context.Context, fullName, location string) ([]models.Person, error) {
	var out []models.Person
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM persons
		WHERE LOWER(full_name) = LOWER($1)
		  AND location ILIKE '%' || $2 || '%'
	`, fullName, location)
	if err != nil {
		return nil, fmt.Errorf("find persons by name and location: %w", err)
	}
	return out, nil
}

// FindPersonsByCompany returns persons currently employed at a company whose
// normalized name overlaps the given normalized candidate (either side may
// be a substring of the other, so "acme" retrieves "Acme, Inc." and
// "acmecorp" retrieves "Acme"). Newest hires first, capped at limit. The
// caller fuzzy-matches names against these candidates.
func (s *Store) FindPersonsByCompany(ctx context.Context, normalizedCompany string, limit int) ([]PersonCandidate, error) {
	if normalizedCompany == "" {
		return nil, nil
	}
	var out []PersonCandidate
	err := s.db.SelectContext(ctx, &out, `
		SELECT p.*, co.company_name
		FROM persons p
		JOIN employments e ON e.person_id = p.id AND e.end_date IS NULL
		JOIN companies co ON co.id = e.company_id
		CROSS JOIN LATERAL (
			SELECT regexp_replace(
				regexp_replace(LOWER(co.company_name), '\y(inc|llc|ltd)\y', '', 'g'),
				'[^a-z0-9]', '', 'g') AS norm
		) n
		WHERE n.norm <> ''
		  AND (position(n.norm IN $1) > 0 OR position($1 IN n.norm) > 0)
		ORDER BY e.start_date DESC NULLS LAST
		LIMIT $2
	`, normalizedCompany, limit)
	if err != nil {
		return nil, fmt.Errorf("find persons by company: %w", err)
	}
	return out, nil
}

// GetPerson fetches a person by id.
func (s *Store) GetPerson(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	var p models.Person
	err := s.db.GetContext(ctx, &p, `SELECT * FROM persons WHERE id = $1`, id)
	if err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get person %s: %w", id, err)
	}
	return &p, nil
}

// UpsertPerson inserts or refreshes a person keyed on the raw LinkedIn URL.
// Persons without a LinkedIn URL are always inserted fresh.
func (s *Store) UpsertPerson(ctx context.Context, p *models.Person) (uuid.UUID, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.LinkedinURL == nil {
		_, err := s.db.NamedExecContext(ctx, `
			INSERT INTO persons (
				id, full_name, first_name, last_name, linkedin_url,
				normalized_linkedin_url, location, headline, description,
				created_at, refreshed_at
			) VALUES (
				:id, :full_name, :first_name, :last_name, NULL,
				NULL, :location, :headline, :description, now(), now()
			)
		`, p)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert person %s: %w", p.FullName, err)
		}
		return p.ID, nil
	}
	query := `
		INSERT INTO persons (
			id, full_name, first_name, last_name, linkedin_url,
			normalized_linkedin_url, location, headline, description,
			created_at, refreshed_at
		) VALUES (
			:id, :full_name, :first_name, :last_name, :linkedin_url,
			:normalized_linkedin_url, :location, :headline, :description,
			now(), now()
		)
		ON CONFLICT (linkedin_url) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			first_name = COALESCE(EXCLUDED.first_name, persons.first_name),
			last_name = COALESCE(EXCLUDED.last_name, persons.last_name),
			normalized_linkedin_url = COALESCE(EXCLUDED.normalized_linkedin_url, persons.normalized_linkedin_url),
			location = COALESCE(EXCLUDED.location, persons.location),
			headline = COALESCE(EXCLUDED.headline, persons.headline),
			description = COALESCE(EXCLUDED.description, persons.description),
			refreshed_at = now()
		RETURNING id
	`
	rows, err := s.db.NamedQueryContext(ctx, query, p)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert person %s: %w", p.FullName, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return uuid.Nil, fmt.Errorf("upsert person %s: no id returned", p.FullName)
	}
	var id uuid.UUID
	if err := rows.Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("upsert person %s: %w", p.FullName, err)
	}
	p.ID = id
	return id, nil
}

// UpsertCompany finds or creates a company keyed on its domain. Unknown
// domains get a deterministic "<slug>.placeholder" synthesized by the caller.
func (s *Store) UpsertCompany(ctx context.Context, name, domain string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO companies (id, company_name, company_domain, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (company_domain) DO UPDATE SET
			company_name = companies.company_name
		RETURNING id
	`, uuid.New(), name, domain).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert company %s: %w", domain, err)
	}
	return id, nil
}

// InsertEmployment records an employment. Rows duplicating an existing
// (person, company, start_date) are suppressed; dateless rows always insert.
func (s *Store) InsertEmployment(ctx context.Context, e *models.Employment) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.DatePrecision == "" {
		e.DatePrecision = models.PrecisionUnknown
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO employments (
			id, person_id, company_id, title, start_date, end_date,
			location, date_precision, source_text_ref, created_at
		) VALUES (
			:id, :person_id, :company_id, :title, :start_date, :end_date,
			:location, :date_precision, :source_text_ref, now()
		)
		ON CONFLICT (person_id, company_id, start_date) WHERE start_date IS NOT NULL
		DO NOTHING
	`, e)
	if err != nil {
		return fmt.Errorf("insert employment person=%s company=%s: %w", e.PersonID, e.CompanyID, err)
	}
	return nil
}

// InsertPersonEmail records an email for a person. Duplicates are no-ops.
func (s *Store) InsertPersonEmail(ctx context.Context, personID uuid.UUID, email string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO person_emails (id, person_id, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (person_id, LOWER(email)) DO NOTHING
	`, uuid.New(), personID, email)
	if err != nil {
		return fmt.Errorf("insert person email %s: %w", personID, err)
	}
	return nil
}

// DeletePersonCascade removes a person and everything hanging off it.
// Profiles pointing at the person are unlinked, not deleted.
func (s *Store) DeletePersonCascade(ctx context.Context, personID uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM persons WHERE id = $1`, personID); err != nil {
		return fmt.Errorf("delete person %s: %w", personID, err)
	}
	return nil
}

// InsertReviewNote flags an entity for human review.
func (s *Store) InsertReviewNote(ctx context.Context, entityType string, entityID uuid.UUID, note string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_notes (id, entity_type, entity_id, note, created_at)
		VALUES ($1, $2, $3, $4, now())
	`, uuid.New(), entityType, entityID, note)
	if err != nil {
		return fmt.Errorf("insert review note %s/%s: %w", entityType, entityID, err)
	}
	return nil
}
