package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Person is a real individual deduplicated across sources. Persons are
// created by the CSV importers; this core links profiles to them and only
// ever deletes them through the reconciliation policy.
type Person struct {
	ID                    uuid.UUID  `db:"id"`
	FullName              string     `db:"full_name"`
	FirstName             *string    `db:"first_name"`
	LastName              *string    `db:"last_name"`
	LinkedinURL           *string    `db:"linkedin_url"`
	NormalizedLinkedinURL *string    `db:"normalized_linkedin_url"`
	Location              *string    `db:"location"`
	Headline              *string    `db:"headline"`
	Description           *string    `db:"description"`
	CreatedAt             time.Time  `db:"created_at"`
	RefreshedAt           *time.Time `db:"refreshed_at"`
}

// Company is an employer. CompanyDomain is globally unique; when the real
// domain is unknown a deterministic "<slug>.placeholder" is synthesized.
type Company struct {
	ID            uuid.UUID `db:"id"`
	CompanyName   string    `db:"company_name"`
	CompanyDomain string    `db:"company_domain"`
	CreatedAt     time.Time `db:"created_at"`
}

// DatePrecision describes how precise an employment date is.
type DatePrecision string

const (
	PrecisionDay       DatePrecision = "day"
	PrecisionMonthYear DatePrecision = "month_year"
	PrecisionYear      DatePrecision = "year"
	PrecisionUnknown   DatePrecision = "unknown"
)

// Employment links a person to a company. A null EndDate denotes a current
// position. Duplicate rows sharing the same start date are suppressed on
// insert.
type Employment struct {
	ID            uuid.UUID     `db:"id"`
	PersonID      uuid.UUID     `db:"person_id"`
	CompanyID     uuid.UUID     `db:"company_id"`
	Title         *string       `db:"title"`
	StartDate     *time.Time    `db:"start_date"`
	EndDate       *time.Time    `db:"end_date"`
	Location      *string       `db:"location"`
	DatePrecision DatePrecision `db:"date_precision"`
	SourceTextRef *string       `db:"source_text_ref"`
	CreatedAt     time.Time     `db:"created_at"`
}

// PersonEmail is a known email address for a person.
type PersonEmail struct {
	ID       uuid.UUID `db:"id"`
	PersonID uuid.UUID `db:"person_id"`
	Email    string    `db:"email"`
}

// GitHubProfile is a GitHub user as known to this system, whether or not
// it has been linked to a Person yet.
type GitHubProfile struct {
	ID             uuid.UUID  `db:"id"`
	GithubUsername string     `db:"github_username"`
	PersonID       *uuid.UUID `db:"person_id"`

	Name            *string    `db:"name"`
	Email           *string    `db:"email"`
	Bio             *string    `db:"bio"`
	Company         *string    `db:"company"`
	Location        *string    `db:"location"`
	Blog            *string    `db:"blog"`
	TwitterUsername *string    `db:"twitter_username"`
	AvatarURL       *string    `db:"avatar_url"`
	Hireable        *bool      `db:"hireable"`
	Followers       int        `db:"followers"`
	Following       int        `db:"following"`
	PublicRepos     int        `db:"public_repos"`
	GithubCreatedAt *time.Time `db:"github_created_at"`
	GithubUpdatedAt *time.Time `db:"github_updated_at"`

	// LinkedIn URL extracted from the bio by the enrichment engine; consumed
	// by the resolver's linkedin strategy.
	BioLinkedinURL *string `db:"bio_linkedin_url"`

	EcosystemTags pq.StringArray `db:"ecosystem_tags"`
	TopLanguages  *string        `db:"top_languages"` // JSON language -> repo count
	LastEnriched  *time.Time     `db:"last_enriched"`
	LastError     *string        `db:"last_error"`

	TotalMergedPRs           int     `db:"total_merged_prs"`
	TotalLinesContributed    int     `db:"total_lines_contributed"`
	TotalStarsEarned         int     `db:"total_stars_earned"`
	ContributionQualityScore float64 `db:"contribution_quality_score"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// GitHubRepository is a repository discovered via the taxonomy or the
// crawler. FullName is "owner/name", unique case-insensitively.
type GitHubRepository struct {
	ID            uuid.UUID `db:"id"`
	FullName      string    `db:"full_name"`
	OwnerUsername string    `db:"owner_username"`

	Description *string `db:"description"`
	Language    *string `db:"language"`
	Stars       int     `db:"stars"`
	Forks       int     `db:"forks"`
	IsFork      bool    `db:"is_fork"`
	HomepageURL *string `db:"homepage_url"`

	GithubCreatedAt *time.Time `db:"github_created_at"`
	GithubUpdatedAt *time.Time `db:"github_updated_at"`
	GithubPushedAt  *time.Time `db:"github_pushed_at"`

	EcosystemIDs        UUIDArray  `db:"ecosystem_ids"`
	DiscoverySourceID   *uuid.UUID `db:"discovery_source_id"`
	ContributorCount    int        `db:"contributor_count"`
	LastContributorSync *time.Time `db:"last_contributor_sync"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// GitHubContribution is a (profile, repo) edge with contribution counters.
type GitHubContribution struct {
	ID              uuid.UUID `db:"id"`
	GithubProfileID uuid.UUID `db:"github_profile_id"`
	RepoID          uuid.UUID `db:"repo_id"`

	ContributionCount        int        `db:"contribution_count"`
	MergedPRCount            int        `db:"merged_pr_count"`
	LinesAdded               int        `db:"lines_added"`
	LinesDeleted             int        `db:"lines_deleted"`
	FilesChanged             int        `db:"files_changed"`
	FirstContributionDate    *time.Time `db:"first_contribution_date"`
	LastContributionDate     *time.Time `db:"last_contribution_date"`
	ContributionQualityScore *float64   `db:"contribution_quality_score"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// CryptoEcosystem is a named community owning a set of repositories.
// PriorityScore is 1 (highest) to 5 (lowest) and only ever tightens downward.
type CryptoEcosystem struct {
	ID                uuid.UUID      `db:"id"`
	EcosystemName     string         `db:"ecosystem_name"`
	NormalizedName    string         `db:"normalized_name"`
	ParentEcosystemID *uuid.UUID     `db:"parent_ecosystem_id"`
	PriorityScore     int            `db:"priority_score"`
	Tags              pq.StringArray `db:"tags"`
	TaxonomySource    *string        `db:"taxonomy_source"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

// DiscoverySource records where entities were first seen.
type DiscoverySource struct {
	ID           uuid.UUID `db:"id"`
	SourceName   string    `db:"source_name"`
	SourceType   string    `db:"source_type"`
	PriorityTier int       `db:"priority_tier"`
	CreatedAt    time.Time `db:"created_at"`
}

// Discovery source types.
const (
	SourceElectricCapitalTaxonomy = "electric_capital_taxonomy"
	SourceManualImport            = "manual_import"
	SourceContributorExpansion    = "contributor_expansion"
)

// EntityDiscovery is an append-only event recording how an entity entered
// the system.
type EntityDiscovery struct {
	ID              uuid.UUID  `db:"id"`
	EntityType      string     `db:"entity_type"`
	EntityID        uuid.UUID  `db:"entity_id"`
	SourceID        uuid.UUID  `db:"source_id"`
	DiscoveredViaID *uuid.UUID `db:"discovered_via_id"`
	DiscoveryMethod string     `db:"discovery_method"`
	MetadataJSON    *string    `db:"metadata_json"`
	DiscoveredAt    time.Time  `db:"discovered_at"`
}

// Skill is a canonical skill seeded from a static catalog.
type Skill struct {
	ID        uuid.UUID      `db:"id"`
	SkillName string         `db:"skill_name"`
	Category  string         `db:"category"`
	Aliases   pq.StringArray `db:"aliases"`
	CreatedAt time.Time      `db:"created_at"`
}

// RepositorySkill tags a repository with a skill, usually derived from its
// primary language.
type RepositorySkill struct {
	ID              uuid.UUID `db:"id"`
	RepoID          uuid.UUID `db:"repo_id"`
	SkillID         uuid.UUID `db:"skill_id"`
	IsPrimary       bool      `db:"is_primary"`
	ConfidenceScore float64   `db:"confidence_score"`
	Source          string    `db:"source"`
	CreatedAt       time.Time `db:"created_at"`
}

// PersonSkill aggregates skill evidence for a person.
type PersonSkill struct {
	ID               uuid.UUID      `db:"id"`
	PersonID         uuid.UUID      `db:"person_id"`
	SkillID          uuid.UUID      `db:"skill_id"`
	ProficiencyScore float64        `db:"proficiency_score"`
	ConfidenceScore  float64        `db:"confidence_score"`
	EvidenceSources  pq.StringArray `db:"evidence_sources"`
	MergedPRsCount   int            `db:"merged_prs_count"`
	ReposUsingSkill  int            `db:"repos_using_skill"`
	FirstSeen        *time.Time     `db:"first_seen"`
	LastUsed         *time.Time     `db:"last_used"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

// CollaborationEdge is a symmetric relationship between two persons derived
// from co-contribution. Exactly one row exists per pair, with
// SrcPersonID < DstPersonID by string comparison.
type CollaborationEdge struct {
	ID          uuid.UUID `db:"id"`
	SrcPersonID uuid.UUID `db:"src_person_id"`
	DstPersonID uuid.UUID `db:"dst_person_id"`

	SharedRepos            int        `db:"shared_repos"`
	SharedContributions    int        `db:"shared_contributions"`
	FirstCollaborationDate *time.Time `db:"first_collaboration_date"`
	LastCollaborationDate  *time.Time `db:"last_collaboration_date"`
	CollaborationMonths    int        `db:"collaboration_months"`
	ReposList              UUIDArray  `db:"repos_list"`
	TopSharedRepos         *string    `db:"top_shared_repos"` // JSON [{repo_name, contributions}]
	CollaborationStrength  *float64   `db:"collaboration_strength"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// SharedRepo is one entry of CollaborationEdge.TopSharedRepos.
type SharedRepo struct {
	RepoName      string `json:"repo_name"`
	Contributions int    `json:"contributions"`
}

// ReviewNote is an append-only note flagging an entity for human review.
type ReviewNote struct {
	ID         uuid.UUID `db:"id"`
	EntityType string    `db:"entity_type"`
	EntityID   uuid.UUID `db:"entity_id"`
	Note       string    `db:"note"`
	CreatedAt  time.Time `db:"created_at"`
}
