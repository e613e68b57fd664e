package models

import "time"

type TicketStatus string

const (
	TicketOpen     TicketStatus = "open"
	TicketAnswered TicketStatus = "answered"
	TicketClosed   TicketStatus = "closed"
)

type TicketAuthor string

const (
	TicketAuthorUser  TicketAuthor = "user"
	TicketAuthorAdmin TicketAuthor = "admin"
)

type SupportTicket struct {
	ID          uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	ClerkUserID string          `gorm:"not null;index" json:"clerk_user_id"`
	Subject     string          `gorm:"not null" json:"subject"`
	Status      TicketStatus    `gorm:"not null;index" json:"status"`
	Messages    []TicketMessage `gorm:"foreignKey:TicketID" json:"messages,omitempty"`
	CreatedAt   time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type TicketMessage struct {
	ID        uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	TicketID  uint         `gorm:"not null;index" json:"ticket_id"`
	Author    TicketAuthor `gorm:"not null" json:"author"`
	Body      string       `gorm:"not null" json:"body"`
	CreatedAt time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

type TicketCreateRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type TicketReplyRequest struct {
	Body string `json:"body"`
}
