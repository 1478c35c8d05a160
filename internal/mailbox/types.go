package mailbox

import "time"

// Candidate is one notification thread as stored by the inbound mail receiver.
type Candidate struct {
	ID         string    `dynamodbav:"thread_id" json:"thread_id" validate:"required"` // PK
	ReceivedAt time.Time `dynamodbav:"received_at" json:"received_at" validate:"required"`
	Sender     string    `dynamodbav:"sender" json:"sender"`
	Subject    string    `dynamodbav:"subject" json:"subject"`
	Bodies     []string  `dynamodbav:"bodies" json:"bodies" validate:"required,min=1"`
	Labels     []string  `dynamodbav:"labels,stringset,omitempty" json:"labels,omitempty"`
}

// Query selects candidate threads. Empty fields do not filter.
type Query struct {
	Sender        string
	Subject       string
	RequireLabel  string
	ExcludeLabels []string
	Limit         int
}
