package internal

// Message is the envelope for every frame on the wire, in both directions.
type Message[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data"`
}

// Inbound payloads (client -> coordinator).

type JoinRoomData struct {
	RoomId   string `json:"roomId"`
	Username string `json:"username"`
}

type StartGameData struct {
	RoomId string     `json:"roomId"`
	Config RoomConfig `json:"config"`
}

type PlayerAnswerData struct {
	RoomId   string `json:"roomId"`
	AnswerId string `json:"answerId"`
}

// Outbound payloads (coordinator -> all room members).

type RoomUpdateData struct {
	Players []Player   `json:"players"`
	State   GamePhase  `json:"state"`
	Config  RoomConfig `json:"config"`
}

type GameStartData struct {
	RoundData Round `json:"roundData"`
}

type PlayerScore struct {
	Id    string `json:"id"`
	Score int    `json:"score"`
}

type RoundResultData struct {
	WinnerName string        `json:"winnerName"`
	WinnerId   string        `json:"winnerId"`
	Scores     []PlayerScore `json:"scores"`
}

type NextRoundData struct {
	RoundData Round `json:"roundData"`
	RoundNum  int   `json:"roundNum"`
}

type GameOverData struct {
	Scores []Player `json:"scores"`
}

// ErrorData is a structured rejection sent only to the offending
// connection, never broadcast.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
