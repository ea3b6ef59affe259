package entity

// Mark is the symbol a participant places on the board. MarkEmpty marks a free cell.
type Mark uint8

const (
	MarkEmpty Mark = iota
	MarkX
	MarkO
)

func (that Mark) String() string {
	switch that {
	case MarkX:
		return "X"
	case MarkO:
		return "O"
	default:
		return ""
	}
}

func (that Mark) IsEmpty() bool {
	return that == MarkEmpty
}

type OutcomeKind uint8

const (
	ContinuePlay OutcomeKind = iota
	Win
	Draw
)

func (that OutcomeKind) String() string {
	switch that {
	case Win:
		return "win"
	case Draw:
		return "draw"
	default:
		return "continue"
	}
}

// Outcome is the board state after a move. Mark is set only for Win.
type Outcome struct {
	Kind OutcomeKind
	Mark Mark
}

func Continue() Outcome {
	return Outcome{Kind: ContinuePlay}
}

func WinFor(mark Mark) Outcome {
	return Outcome{Kind: Win, Mark: mark}
}

func Drawn() Outcome {
	return Outcome{Kind: Draw}
}

func (that Outcome) IsTerminal() bool {
	return that.Kind != ContinuePlay
}
