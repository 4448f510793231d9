package interfaces

import (
	"context"
	"time"
)

// Attachment is an inline or attached file on an outgoing email
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// EmailMessage is one rendered email for one recipient
type EmailMessage struct {
	To          string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// EmailSender delivers rendered emails
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// BotSender broadcasts a formatted message to the configured chat
type BotSender interface {
	Authenticate(ctx context.Context) error
	Broadcast(ctx context.Context, text string) error
}

// BlogPost is the canonical post handed to every publisher
type BlogPost struct {
	Title string
	Slug  string
	Body  string // markdown
	Tags  []string
	Date  time.Time
}

// Publisher pushes a post to one external platform
type Publisher interface {
	Name() string
	Authenticate(ctx context.Context) error
	// Transform converts the canonical markdown into the platform format
	Transform(post BlogPost) (BlogPost, error)
	// Publish returns the remote post id and url
	Publish(ctx context.Context, post BlogPost) (string, string, error)
}
