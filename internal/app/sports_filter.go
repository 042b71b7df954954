package app

import (
	"regexp"
	"sort"
	"strings"
)

// sportsKeywords flags likely sports markets. Matching is substring based on
// the lowercased title+description, same as team matching below.
var sportsKeywords = []string{
	// major sports
	"nfl", "nba", "mlb", "nhl", "soccer", "football", "basketball", "baseball", "hockey",
	"mls", "premier league", "la liga", "serie a", "bundesliga", "ligue 1", "champions league",
	// combat sports
	"ufc", "boxing", "mma", "fight", "bout",
	// other sports
	"tennis", "golf", "cricket", "rugby", "f1", "formula 1", "nascar", "racing",
	// college sports
	"ncaa", "college football", "college basketball",
	// sport terms
	"game", "match", "vs", " at ", "team", "player", "score",
	// betting terms
	"moneyline", "spread", "total", "prop",
}

var nflTeams = []string{
	"bills", "dolphins", "patriots", "jets", "ravens", "bengals", "browns", "steelers",
	"texans", "colts", "jaguars", "titans", "broncos", "chiefs", "raiders", "chargers",
	"cowboys", "giants", "eagles", "commanders", "bears", "lions", "packers", "vikings",
	"falcons", "panthers", "saints", "buccaneers", "cardinals", "rams", "49ers", "seahawks",
}

var nbaTeams = []string{
	"celtics", "nets", "knicks", "76ers", "raptors", "bulls", "cavaliers", "pistons",
	"pacers", "bucks", "hawks", "hornets", "heat", "magic", "wizards", "nuggets",
	"timberwolves", "thunder", "trail blazers", "jazz", "warriors", "clippers", "lakers",
	"suns", "kings", "mavericks", "rockets", "grizzlies", "pelicans", "spurs",
}

// moneylinePatterns match titles shaped like "Will X win?", "X vs Y", etc.
var moneylinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`will .+ win`),
	regexp.MustCompile(`who will win`),
	regexp.MustCompile(`.+ to win`),
	regexp.MustCompile(`.+ vs .+`),
	regexp.MustCompile(`.+ @ .+`),
	regexp.MustCompile(`winner`),
	regexp.MustCompile(`moneyline`),
}

// moneylineExclusions knock out spread and totals markets before the
// pattern match runs, so "Lakers vs Celtics: total points" never qualifies.
var moneylineExclusions = []string{"spread", "over", "under", "total points", "total score"}

// sportCategory maps a sport label to the keywords that identify it.
// Checked in order so team-name matches resolve to their league first.
type sportCategory struct {
	Sport    string
	Keywords []string
}

// SportsFilter classifies market questions as sports markets and
// moneyline bets, and buckets them by sport.
type SportsFilter struct {
	allTeams   []string
	categories []sportCategory
}

func NewSportsFilter() *SportsFilter {
	allTeams := make([]string, 0, len(nflTeams)+len(nbaTeams))
	allTeams = append(allTeams, nflTeams...)
	allTeams = append(allTeams, nbaTeams...)

	return &SportsFilter{
		allTeams: allTeams,
		categories: []sportCategory{
			{"NFL", append([]string{"nfl"}, nflTeams...)},
			{"NBA", append([]string{"nba"}, nbaTeams...)},
			{"MLB", []string{"mlb", "baseball"}},
			{"NHL", []string{"nhl", "hockey"}},
			{"Soccer", []string{"soccer", "premier league", "la liga", "mls", "champions league"}},
			{"UFC/MMA", []string{"ufc", "mma", "fight"}},
			{"Tennis", []string{"tennis"}},
			{"Golf", []string{"golf", "pga"}},
			{"NCAA", []string{"ncaa", "college"}},
		},
	}
}

// IsSportsMarket reports whether a market title/description looks sports
// related, by keyword or team name.
func (f *SportsFilter) IsSportsMarket(title, description string) bool {
	text := strings.ToLower(title + " " + description)

	for _, kw := range sportsKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	for _, team := range f.allTeams {
		if strings.Contains(text, team) {
			return true
		}
	}
	return false
}

// IsMoneylineMarket reports whether a market title is a moneyline bet.
// Spread and totals markets are excluded even when they also match a
// moneyline pattern.
func (f *SportsFilter) IsMoneylineMarket(title string) bool {
	lower := strings.ToLower(title)

	for _, excl := range moneylineExclusions {
		if strings.Contains(lower, excl) {
			return false
		}
	}
	for _, pat := range moneylinePatterns {
		if pat.MatchString(lower) {
			return true
		}
	}
	return false
}

// ExtractTeams returns the known team names found in a title, title-cased
// and alphabetically sorted.
func (f *SportsFilter) ExtractTeams(title string) []string {
	lower := strings.ToLower(title)

	var found []string
	for _, team := range f.allTeams {
		if strings.Contains(lower, team) {
			found = append(found, titleCase(team))
		}
	}
	sort.Strings(found)
	return found
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// CategorizeSport returns the sport a market belongs to, or "" if none
// of the known leagues match.
func (f *SportsFilter) CategorizeSport(title string) string {
	lower := strings.ToLower(title)

	for _, cat := range f.categories {
		for _, kw := range cat.Keywords {
			if strings.Contains(lower, kw) {
				return cat.Sport
			}
		}
	}
	return ""
}

// SportsSummary counts sports markets per sport category. Titles that are
// sports related but match no category land in "Other".
func (f *SportsFilter) SportsSummary(titles []string) map[string]int {
	summary := make(map[string]int)
	for _, title := range titles {
		if !f.IsSportsMarket(title, "") {
			continue
		}
		sport := f.CategorizeSport(title)
		if sport == "" {
			sport = "Other"
		}
		summary[sport]++
	}
	return summary
}
