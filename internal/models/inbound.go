package models

import "time"

// InboundEmail is a remote email normalized for sender matching and storage
type InboundEmail struct {
	MessageID   string
	ThreadID    string
	SenderEmail string
	SenderName  string
	To          string
	Subject     string
	BodyText    string
	SentAt      time.Time
	ReceivedAt  time.Time
}
