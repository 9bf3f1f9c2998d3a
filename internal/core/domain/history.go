package domain

import (
	"encoding/json"
	"time"
)

type HistoryEntry struct {
	ID        string          `json:"id"`
	Filename  string          `json:"filename"`
	Query     string          `json:"query"`
	Result    json.RawMessage `json:"result"`
	CreatedAt time.Time       `json:"timestamp"`
}

type FeedbackEntry struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Rating    string    `json:"rating"`
	CreatedAt time.Time `json:"timestamp"`
}
