package mail

import "time"

// Message is one parsed email as produced by the mail provider.
type Message struct {
	ID             string    `json:"id"`
	ThreadID       string    `json:"thread_id"`
	Subject        string    `json:"subject"`
	Sender         string    `json:"sender"`
	SenderName     string    `json:"sender_name"`
	Recipients     []string  `json:"recipients"`
	CC             []string  `json:"cc"`
	Date           time.Time `json:"date"`
	Body           string    `json:"body"`
	Snippet        string    `json:"snippet"`
	Labels         []string  `json:"labels"`
	IsReply        bool      `json:"is_reply"`
	HasAttachments bool      `json:"has_attachments"`
}
