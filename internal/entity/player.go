package entity

const (
	StatusIdle    = "idle"
	StatusPlaying = "playing"
)

type Player struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
	Points int    `json:"points"`
}

// PlayerUpdate describes a partial change to a stored player record.
type PlayerUpdate struct {
	Status    string
	AddPoints int
}

func (that *Player) Apply(update PlayerUpdate) {
	if update.Status != "" {
		that.Status = update.Status
	}

	that.Points += update.AddPoints
}

func (that *Player) IsPlaying() bool {
	return that.Status == StatusPlaying
}
