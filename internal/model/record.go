package model

// OutputRecord is one positive match, ready to be rendered.
type OutputRecord struct {
	MessageID   int64  `json:"message_id"`
	DisplayName string `json:"display_name"`
	Timestamp   string `json:"timestamp"`
	ProfileLink string `json:"profile_link,omitempty"`
}
