package domain

import "context"

// Notification is a message delivered to an external chat channel.
type Notification struct {
	Title    string
	Body     string
	FilePath string // optional attachment
}

// Notifier delivers notifications to one destination.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}
