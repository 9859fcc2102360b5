package push

import "context"

// Data is the structured part of a push payload.
type Data struct {
	Type string `json:"type"`
}

// Payload mirrors the web-push notification contract of the API service.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
	Badge string `json:"badge,omitempty"`
	Tag   string `json:"tag,omitempty"`
	Data  Data   `json:"data"`
}

// Sender hands a push payload to the delivery pipeline. Delivery itself
// (subscription lookup, web-push encryption, retries) happens downstream;
// the relay only dispatches and never waits for an outcome.
type Sender interface {
	Send(ctx context.Context, targetUserID string, payload *Payload) error
	Close() error
}
