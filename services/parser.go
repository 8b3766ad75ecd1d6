package services

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Typed rows extracted from source result feeds. The feeds are JSON
// documents; one event page can carry any combination of the sections below.

// TeamRow is one attending team
type TeamRow struct {
	SourceID int    `json:"source_id"`
	Name     string `json:"name"`
}

// PlayerRow is one rostered player with their team's source id
type PlayerRow struct {
	SourceID     int    `json:"source_id"`
	Name         string `json:"name"`
	TeamSourceID int    `json:"team_source_id"`
}

// TeamRecordRow is one team's final group-stage record, e.g. "3-1"
type TeamRecordRow struct {
	TeamSourceID int    `json:"team_source_id"`
	Record       string `json:"record"`
}

// BracketMatchResult is one decided playoff match
type BracketMatchResult struct {
	SourceMatchID  int  `json:"source_match_id"`
	TeamASourceID  int  `json:"team_a_source_id"`
	TeamBSourceID  int  `json:"team_b_source_id"`
	TeamAScore     *int `json:"team_a_score"`
	TeamBScore     *int `json:"team_b_score"`
	WinnerSourceID *int `json:"winner_source_id"`
}

// LeaderboardEntry is one ranked row of a stat leaderboard. Position is
// assigned by RankLeaderboard, not carried by the feed.
type LeaderboardEntry struct {
	SourceID int     `json:"source_id"`
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
	Position int     `json:"position"`
}

type sourceFeed struct {
	Teams       []TeamRow            `json:"teams"`
	Players     []PlayerRow          `json:"players"`
	Records     []TeamRecordRow      `json:"records"`
	Matches     []BracketMatchResult `json:"matches"`
	Leaderboard []LeaderboardEntry   `json:"leaderboard"`
}

func decodeFeed(body string) (*sourceFeed, error) {
	var feed sourceFeed
	if err := json.Unmarshal([]byte(body), &feed); err != nil {
		return nil, fmt.Errorf("failed to decode source feed: %w", err)
	}
	return &feed, nil
}

// ParseAttending extracts the attending teams and their rosters.
func ParseAttending(body string) ([]TeamRow, []PlayerRow, error) {
	feed, err := decodeFeed(body)
	if err != nil {
		return nil, nil, err
	}
	return feed.Teams, feed.Players, nil
}

// ParseSwissRecords extracts final team records from a group-stage feed.
func ParseSwissRecords(body string) ([]TeamRecordRow, error) {
	feed, err := decodeFeed(body)
	if err != nil {
		return nil, err
	}
	return feed.Records, nil
}

// ParseBracketResults extracts decided playoff matches.
func ParseBracketResults(body string) ([]BracketMatchResult, error) {
	feed, err := decodeFeed(body)
	if err != nil {
		return nil, err
	}
	return feed.Matches, nil
}

// ParseLeaderboard extracts and ranks a stat leaderboard. invert flips the
// sort for stats where lower is better (e.g., deaths per round).
func ParseLeaderboard(body string, invert bool) ([]LeaderboardEntry, error) {
	feed, err := decodeFeed(body)
	if err != nil {
		return nil, err
	}
	return RankLeaderboard(feed.Leaderboard, invert), nil
}

// RankLeaderboard sorts entries best-first and assigns positions. Tied
// values share a position and the next distinct value takes the following
// rank: values [1.50, 1.50, 1.40] rank as [1, 1, 2].
func RankLeaderboard(entries []LeaderboardEntry, invert bool) []LeaderboardEntry {
	ranked := make([]LeaderboardEntry, len(entries))
	copy(ranked, entries)

	sort.SliceStable(ranked, func(i, j int) bool {
		if invert {
			return ranked[i].Value < ranked[j].Value
		}
		return ranked[i].Value > ranked[j].Value
	})

	currentRank := 0
	for i := range ranked {
		if i == 0 || ranked[i].Value != ranked[i-1].Value {
			currentRank++
		}
		ranked[i].Position = currentRank
	}
	return ranked
}
