package types

// Event represents a typed event emitted during state transitions.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	// Height and Timestamp are stamped by the node when the transaction that
	// produced the event commits.
	Height    uint64 `json:"height,omitempty"`
	Timestamp uint64 `json:"timestamp,omitempty"`
}

// Attr returns the attribute value for key or the empty string.
func (e *Event) Attr(key string) string {
	if e == nil || e.Attributes == nil {
		return ""
	}
	return e.Attributes[key]
}
