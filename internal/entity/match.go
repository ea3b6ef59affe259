package entity

type MatchStatus int32

const (
	MatchCreated MatchStatus = iota
	MatchRunning
	MatchEnded
)

func (that MatchStatus) String() string {
	switch that {
	case MatchCreated:
		return "created"
	case MatchRunning:
		return "running"
	case MatchEnded:
		return "ended"
	default:
		return "unknown"
	}
}

const (
	EndReasonWin     = "win"
	EndReasonDraw    = "draw"
	EndReasonForfeit = "forfeit"
	EndReasonStopped = "stopped"
)

// MoveRequest is a move waiting in a match's intake queue.
type MoveRequest struct {
	PlayerID string
	Row      int
	Col      int
}

// MatchResult summarizes a finished match.
type MatchResult struct {
	MatchID   string   `json:"match_id"`
	Players   []string `json:"players"`
	GridSize  int      `json:"grid_size"`
	Reason    string   `json:"reason"`
	WinnerID  string   `json:"winner_id,omitempty"`
	Mark      string   `json:"mark,omitempty"`
	MoveCount int      `json:"move_count"`
}
