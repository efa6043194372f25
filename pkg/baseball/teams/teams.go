// Package teams is the fixed MLB team-code reference data used to validate
// matchup input and to build market slugs. The core engine never reads it.
package teams

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Team is one MLB club.
type Team struct {
	Code string `json:"code"` // 2-3 letter code, uppercase
	Name string `json:"name"`
}

var teams = []Team{
	{Code: "ARI", Name: "Arizona Diamondbacks"},
	{Code: "ATL", Name: "Atlanta Braves"},
	{Code: "BAL", Name: "Baltimore Orioles"},
	{Code: "BOS", Name: "Boston Red Sox"},
	{Code: "CHC", Name: "Chicago Cubs"},
	{Code: "CWS", Name: "Chicago White Sox"},
	{Code: "CIN", Name: "Cincinnati Reds"},
	{Code: "CLE", Name: "Cleveland Guardians"},
	{Code: "COL", Name: "Colorado Rockies"},
	{Code: "DET", Name: "Detroit Tigers"},
	{Code: "HOU", Name: "Houston Astros"},
	{Code: "KC", Name: "Kansas City Royals"},
	{Code: "LAA", Name: "Los Angeles Angels"},
	{Code: "LAD", Name: "Los Angeles Dodgers"},
	{Code: "MIA", Name: "Miami Marlins"},
	{Code: "MIL", Name: "Milwaukee Brewers"},
	{Code: "MIN", Name: "Minnesota Twins"},
	{Code: "NYM", Name: "New York Mets"},
	{Code: "NYY", Name: "New York Yankees"},
	{Code: "OAK", Name: "Oakland Athletics"},
	{Code: "PHI", Name: "Philadelphia Phillies"},
	{Code: "PIT", Name: "Pittsburgh Pirates"},
	{Code: "SD", Name: "San Diego Padres"},
	{Code: "SF", Name: "San Francisco Giants"},
	{Code: "SEA", Name: "Seattle Mariners"},
	{Code: "STL", Name: "St. Louis Cardinals"},
	{Code: "TB", Name: "Tampa Bay Rays"},
	{Code: "TEX", Name: "Texas Rangers"},
	{Code: "TOR", Name: "Toronto Blue Jays"},
	{Code: "WSH", Name: "Washington Nationals"},
}

var (
	byCode = func() map[string]Team {
		m := make(map[string]Team, len(teams))
		for _, t := range teams {
			m[t.Code] = t
		}
		return m
	}()
	byName = func() map[string]Team {
		m := make(map[string]Team, len(teams))
		for _, t := range teams {
			m[normalizeName(t.Name)] = t
		}
		return m
	}()
)

// All returns every team in code order.
func All() []Team {
	out := make([]Team, len(teams))
	copy(out, teams)
	return out
}

// ByCode looks up a team by its code (case-insensitive).
func ByCode(code string) (Team, bool) {
	t, ok := byCode[strings.ToUpper(strings.TrimSpace(code))]
	return t, ok
}

// ByName looks up a team by display name, tolerating case and accents.
func ByName(name string) (Team, bool) {
	t, ok := byName[normalizeName(name)]
	return t, ok
}

// Validate returns the canonical team for a user-supplied code.
func Validate(code string) (Team, error) {
	t, ok := ByCode(code)
	if !ok {
		return Team{}, fmt.Errorf("unknown team code %q", code)
	}
	return t, nil
}

func normalizeName(name string) string {
	name = strings.ToLower(name)

	// Remove accents
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	name, _, _ = transform.String(t, name)

	return strings.Join(strings.Fields(name), " ")
}
