package skills

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/talentgraph/talentgraph-go/internal/models"
)

// seedSkill is one row of the static language catalog.
type seedSkill struct {
	name    string
	aliases []string
}

// languageCatalog maps GitHub's language names onto canonical skills.
// Aliases cover the spellings GitHub and user bios actually use.
var languageCatalog = []seedSkill{
	{name: "Go", aliases: []string{"golang"}},
	{name: "Rust", aliases: nil},
	{name: "Solidity", aliases: nil},
	{name: "Python", aliases: []string{"python3"}},
	{name: "TypeScript", aliases: []string{"ts"}},
	{name: "JavaScript", aliases: []string{"js", "node", "nodejs"}},
	{name: "C", aliases: nil},
	{name: "C++", aliases: []string{"cpp"}},
	{name: "C#", aliases: []string{"csharp"}},
	{name: "Java", aliases: nil},
	{name: "Kotlin", aliases: nil},
	{name: "Swift", aliases: nil},
	{name: "Ruby", aliases: nil},
	{name: "PHP", aliases: nil},
	{name: "Scala", aliases: nil},
	{name: "Haskell", aliases: nil},
	{name: "Elixir", aliases: nil},
	{name: "OCaml", aliases: nil},
	{name: "Zig", aliases: nil},
	{name: "Move", aliases: nil},
	{name: "Cairo", aliases: nil},
	{name: "Vyper", aliases: nil},
	{name: "Shell", aliases: []string{"bash", "sh"}},
	{name: "HCL", aliases: []string{"terraform"}},
	{name: "Dart", aliases: nil},
	{name: "Lua", aliases: nil},
	{name: "R", aliases: nil},
	{name: "Julia", aliases: nil},
	{name: "Clojure", aliases: nil},
	{name: "Erlang", aliases: nil},
	{name: "Assembly", aliases: []string{"asm"}},
}

// SeedStore is the persistence surface seeding needs.
type SeedStore interface {
	UpsertSkill(ctx context.Context, skill *models.Skill) (uuid.UUID, error)
}

// Seed upserts the static language catalog. Safe to run on every startup:
// existing skills keep their ids and gain any new aliases.
func Seed(ctx context.Context, store SeedStore) (int, error) {
	for _, s := range languageCatalog {
		aliases := s.aliases
		if aliases == nil {
			aliases = []string{}
		}
		skill := &models.Skill{
			SkillName: s.name,
			Category:  "language",
			Aliases:   pq.StringArray(aliases),
		}
		if _, err := store.UpsertSkill(ctx, skill); err != nil {
			return 0, err
		}
	}
	return len(languageCatalog), nil
}
