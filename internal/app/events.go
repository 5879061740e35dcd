package app

// Event names raised toward the UI layer.
const (
	EventRecordingStarted    = "recording-started"
	EventRecordingStopped    = "recording-stopped"
	EventProcessingComplete  = "processing-complete"
	EventProcessingError     = "processing-error"
	EventHotkeyBindingLoaded = "hotkey-binding-loaded"
)

// ProcessingComplete is the payload of EventProcessingComplete.
type ProcessingComplete struct {
	Text string `json:"text"`
}

// ProcessingError is the payload of EventProcessingError.
type ProcessingError struct {
	Message string `json:"message"`
}

// Events receives UI events. Implementations must not block.
type Events interface {
	Emit(name string, data any)
}

// EventsFunc adapts a function to Events.
type EventsFunc func(name string, data any)

// Emit calls f.
func (f EventsFunc) Emit(name string, data any) { f(name, data) }
