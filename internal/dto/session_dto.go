package dto

import "time"

type CreateSessionResponse struct {
	SessionId string    `json:"session_id"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}

type ClearSessionResponse struct {
	SessionId string `json:"session_id"`
	Cleared   bool   `json:"cleared"`
}
