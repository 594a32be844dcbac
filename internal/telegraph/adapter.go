// Package telegraph delivers the weekly brief and the reflection feed to
// chat platforms (Slack, Discord) and issue trackers (GitHub).
package telegraph

import "context"

// Adapter is the interface that platform-specific implementations must satisfy.
type Adapter interface {
	// Connect establishes a connection to the platform.
	Connect(ctx context.Context) error

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// Namer is an optional interface reporting the platform name used in
// metrics and logs.
type Namer interface {
	Name() string
}

// adapterName returns the adapter's platform name or "unknown".
func adapterName(a Adapter) string {
	if n, ok := a.(Namer); ok {
		return n.Name()
	}
	return "unknown"
}

// OutboundMessage represents a message to be sent to the platform.
type OutboundMessage struct {
	ChannelID string           // target channel; empty uses the adapter default
	Title     string           // headline, used where the platform needs one (issue title)
	Text      string           // message text (platform-native formatting)
	Events    []FormattedEvent // structured attachments
}

// FormattedEvent is one structured attachment: a brief block or a feed item.
type FormattedEvent struct {
	Title    string  // headline
	Body     string  // detail text
	Severity string  // "info", "warning", "error", "success"
	Color    string  // sidebar color hint (e.g. "#36a64f" for success)
	Fields   []Field // key-value metadata pairs
}

// Field is a key-value pair displayed in an attachment.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}
