package apisport

import (
	"strconv"
	"strings"
	"time"
)

// Matches returns the match objects of a feed response. Depending on the
// endpoint the list arrives bare or wrapped under matches, data or items.
func Matches(payload any) []map[string]any {
	items := listItems(payload)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := asMap(item); ok {
			out = append(out, m)
		}
	}
	return out
}

func listItems(payload any) []any {
	switch v := payload.(type) {
	case []any:
		return v
	case map[string]any:
		for _, key := range []string{"matches", "data", "items"} {
			if list, ok := v[key].([]any); ok {
				return list
			}
		}
	}
	return nil
}

// ExternalID returns the feed's match identifier.
func ExternalID(m map[string]any) (int64, bool) {
	for _, key := range []string{"matchId", "id"} {
		switch v := m[key].(type) {
		case float64:
			return int64(v), true
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// Teams returns the home and away team names. Some seasons nest them
// under teams.home/teams.away, others use flat homeTeam/awayTeam.
func Teams(m map[string]any) (home, away string) {
	if teams, ok := asMap(m["teams"]); ok {
		if h, ok := asMap(teams["home"]); ok {
			home = firstString(h, "name", "title")
		}
		if a, ok := asMap(teams["away"]); ok {
			away = firstString(a, "name", "title")
		}
	}
	if home == "" {
		if h, ok := asMap(m["homeTeam"]); ok {
			home = firstString(h, "name", "title")
		}
	}
	if away == "" {
		if a, ok := asMap(m["awayTeam"]); ok {
			away = firstString(a, "name", "title")
		}
	}
	return home, away
}

// RoundNumber returns the round a match belongs to, either from a flat
// key or from a nested round object.
func RoundNumber(m map[string]any) (int, bool) {
	for _, key := range []string{"round", "roundNumber", "tour", "week", "matchday"} {
		if n, ok := asInt(m[key]); ok {
			return n, true
		}
	}
	for _, key := range []string{"tournamentRound", "roundInfo"} {
		nested, ok := asMap(m[key])
		if !ok {
			continue
		}
		for _, k := range []string{"number", "round", "tour", "week", "matchday"} {
			if n, ok := asInt(nested[k]); ok {
				return n, true
			}
		}
	}
	return 0, false
}

// Kickoff returns the kickoff time in UTC. The feed sends either epoch
// seconds or an ISO 8601 string; strings without a zone are read in loc.
func Kickoff(m map[string]any, loc *time.Location) (time.Time, bool) {
	for _, key := range []string{"dateTime", "kickoff", "startTime", "startAt", "scheduledAt", "date"} {
		if ts, ok := parseTime(m[key], loc); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}

func parseTime(v any, loc *time.Location) (time.Time, bool) {
	switch val := v.(type) {
	case float64:
		return time.Unix(int64(val), 0).UTC(), true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, false
		}
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts.UTC(), true
		}
		for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
				return ts.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// Status returns the match status lowercased, or "" when absent. The
// feed sends either a plain string or an object holding a code.
func Status(m map[string]any) string {
	switch s := m["status"].(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(s))
	case map[string]any:
		for _, key := range []string{"code", "slug", "status"} {
			if v, ok := s[key].(string); ok && strings.TrimSpace(v) != "" {
				return strings.ToLower(strings.TrimSpace(v))
			}
		}
	}
	return ""
}

// Score returns the full-time score. ok is false unless both sides are
// present, so a live or scheduled match never yields a partial result.
func Score(m map[string]any) (home, away int, ok bool) {
	for _, key := range []string{"score", "result", "fullTime", "ftScore"} {
		block, isMap := asMap(m[key])
		if !isMap {
			continue
		}
		h, hok := firstInt(block, "home", "homeScore")
		a, aok := firstInt(block, "away", "awayScore")
		if hok && aok {
			return h, a, true
		}
	}
	if h, hok := asInt(m["homeScore"]); hok {
		if a, aok := asInt(m["awayScore"]); aok {
			return h, a, true
		}
	}
	hb, hok := asMap(m["homeScore"])
	ab, aok := asMap(m["awayScore"])
	if hok && aok {
		h, hok := asInt(hb["current"])
		a, aok := asInt(ab["current"])
		if hok && aok {
			return h, a, true
		}
	}
	return 0, 0, false
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

func firstInt(m map[string]any, keys ...string) (int, bool) {
	for _, key := range keys {
		if n, ok := asInt(m[key]); ok {
			return n, true
		}
	}
	return 0, false
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}
