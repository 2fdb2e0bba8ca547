package realtime

import "strings"

// Named realtime streams. Each live match gets its own stream so clients can
// follow a single scoreboard.
const (
	// StreamMatches carries match lifecycle events (started, finished).
	StreamMatches = "matches"

	matchStreamPrefix = "match."
)

// MatchStream returns the stream name carrying score updates for a match.
func MatchStream(matchID string) string {
	return matchStreamPrefix + strings.ToLower(strings.TrimSpace(matchID))
}
