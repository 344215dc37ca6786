package types

// Event is the wire form of an engine emission. Type carries the event
// name and Attributes the string-encoded payload fields.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
