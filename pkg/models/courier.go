package models

import "time"

type Courier struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	FullName  string    `json:"full_name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
