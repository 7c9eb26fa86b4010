package dto

import "time"

// GenerateDigestRequest is the payload for the on-demand digest endpoint.
type GenerateDigestRequest struct {
	UserID    uint `json:"user_id"`
	SendEmail bool `json:"send_email"`
}

// DigestResponse is the API representation of a stored digest.
type DigestResponse struct {
	ID        uint           `json:"id"`
	Date      string         `json:"date"`
	Content   *DigestContent `json:"content"`
	SentAt    *time.Time     `json:"sent_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
