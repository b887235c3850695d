package notify

import "github.com/pagepulse/pagepulse/internal/record"

// Renderer displays notifications in-app and removes them on dismissal.
// Implementations must tolerate Remove for ids they never rendered.
type Renderer interface {
	Render(n record.Notification) error
	Remove(id string) error
}

// Desktop delivers a notification through the host desktop channel.
// Available reports whether permission was granted; when it returns false
// the channel is skipped silently.
type Desktop interface {
	Available() bool
	Notify(n record.Notification) error
}

// Sound plays the audio cue for a notification kind.
type Sound interface {
	Play(kind record.Kind) error
}
