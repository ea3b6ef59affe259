package entity

type MessageKind string

const (
	MessageMove   MessageKind = "game:move"
	MessageEnd    MessageKind = "game:end"
	MessageChat   MessageKind = "game:chat"
	MessageReject MessageKind = "game:reject"
)

const (
	ResultWinner = "Winner"
	ResultLoser  = "Loser"
	ResultDraw   = "Draw"
)

type MovePayload struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type EndPayload struct {
	Result string `json:"result"`
}

type ChatPayload struct {
	Text string `json:"text"`
}

type RejectPayload struct {
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Reason string `json:"reason"`
}
