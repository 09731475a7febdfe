package request

// StartSessionRequest is the request body for signing a player in
type StartSessionRequest struct {
	PlayerID string `json:"player_id"`
}

// FindWordRequest is the request body for recording a found word.
// An empty unit means the current progression marker.
type FindWordRequest struct {
	Unit string `json:"unit,omitempty"`
	Word string `json:"word"`
}

// FindBonusWordRequest is the request body for recording a bonus word
type FindBonusWordRequest struct {
	Word string `json:"word"`
}

// SpendRequest is the request body for spending currency
type SpendRequest struct {
	Amount  int64  `json:"amount"`
	Counter string `json:"counter,omitempty"`
}

// SetCounterRequest is the request body for setting a counter
type SetCounterRequest struct {
	Value *int64 `json:"value"`
}
