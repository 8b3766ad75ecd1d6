package models

import (
	"strings"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var lowerCaser = cases.Lower(language.Und)

// Team is a competing team sourced from the results site
type Team struct {
	ID       string                      `json:"id" gorm:"primaryKey"`
	SourceID int                         `json:"source_id" gorm:"uniqueIndex"`
	Name     string                      `json:"name" gorm:"not null"`
	LogoURL  string                      `json:"logo_url"`
	PageURL  string                      `json:"page_url"`
	Aliases  datatypes.JSONSlice[string] `json:"aliases"`

	Timestamps
}

// BeforeSave regenerates search aliases from the current name.
func (t *Team) BeforeSave(tx *gorm.DB) error {
	t.Aliases = generateAliases(t.Name, false)
	return nil
}

// Player is an individual competitor, optionally tied to an active team
type Player struct {
	ID       string                      `json:"id" gorm:"primaryKey"`
	SourceID int                         `json:"source_id" gorm:"uniqueIndex"`
	Name     string                      `json:"name" gorm:"not null"`
	ImageURL string                      `json:"image_url"`
	StatsURL string                      `json:"stats_url"`
	TeamID   *string                     `json:"team_id,omitempty" gorm:"index"`
	Aliases  datatypes.JSONSlice[string] `json:"aliases"`

	Team *Team `json:"team,omitempty" gorm:"foreignKey:TeamID"`

	Timestamps
}

// BeforeSave regenerates search aliases, including a leetspeak-decoded form
// for player tags like "s1mple" → "simple".
func (p *Player) BeforeSave(tx *gorm.DB) error {
	p.Aliases = generateAliases(p.Name, true)
	return nil
}

var leetReplacer = strings.NewReplacer(
	"1", "i",
	"3", "e",
	"4", "a",
	"5", "s",
	"0", "o",
	"@", "a",
	"$", "s",
	"+", "t",
	"_", "",
)

func generateAliases(name string, leetspeak bool) []string {
	lower := lowerCaser.String(name)
	seen := map[string]bool{lower: true}
	aliases := []string{lower}

	add := func(alias string) {
		if alias != "" && !seen[alias] {
			seen[alias] = true
			aliases = append(aliases, alias)
		}
	}

	if leetspeak {
		add(leetReplacer.Replace(lower))
	}

	// ASCII-folded form so "Natus Vincere" style names match plain input
	add(lowerCaser.String(unidecode.Unidecode(name)))

	var cleaned strings.Builder
	for _, r := range lower {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			cleaned.WriteRune(r)
		}
	}
	add(cleaned.String())

	return aliases
}
