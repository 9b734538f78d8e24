package apex

import (
	"fmt"
	"strings"
	"time"
)

// Platforms accepted by the status API. Input is matched case-insensitively
// and stored in canonical upper-case form.
var platforms = map[string]struct{}{
	"PC":     {},
	"X1":     {},
	"PS4":    {},
	"SWITCH": {},
}

// NormalizePlatform upper-cases p and reports whether it is a platform the
// API understands.
func NormalizePlatform(p string) (string, bool) {
	up := strings.ToUpper(strings.TrimSpace(p))
	_, ok := platforms[up]
	return up, ok
}

// stateText maps API state codes to the display text used in messages.
// Unknown codes fall back to the API-provided text.
var stateText = map[string]string{
	"offline":    "离线",
	"inLobby":    "在大厅",
	"inMatch":    "游戏中",
	"partyLobby": "在队伍大厅",
	"away":       "暂时离开",
}

// Status is a single observation of a player's realtime state.
type Status struct {
	// State is the raw API state code, e.g. "offline" or "inMatch".
	State string
	// APIText is the state description the API itself supplies. Used as a
	// fallback for codes missing from the local map.
	APIText string
	// SinceUnix is when the current state began (unix seconds).
	// Negative when the API did not report it.
	SinceUnix int64
}

// Text returns the display text for the state.
func (s Status) Text() string {
	if t, ok := stateText[s.State]; ok {
		return t
	}
	return s.APIText
}

// Duration renders how long the current state has lasted, relative to now.
func (s Status) Duration(now time.Time) string {
	return FormatDuration(s.SinceUnix, now)
}

// FormatDuration renders the elapsed time since sinceUnix.
// Negative timestamps render as "未知" (unknown).
func FormatDuration(sinceUnix int64, now time.Time) string {
	if sinceUnix < 0 {
		return "未知"
	}
	diff := now.Unix() - sinceUnix
	if diff < 0 {
		diff = 0
	}
	mins, secs := diff/60, diff%60
	hours, mins := mins/60, mins%60
	switch {
	case hours > 0:
		return fmt.Sprintf("%d小时%d分钟", hours, mins)
	case mins > 0:
		return fmt.Sprintf("%d分钟", mins)
	default:
		return fmt.Sprintf("%d秒", secs)
	}
}
