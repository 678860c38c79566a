package proposal

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// MessageType marks a chat body as a structured proposal.
const MessageType = "proposal"

// Offer is the structured payload carried by a proposal message.
type Offer struct {
	Type         string `json:"type"`
	Budget       int64  `json:"budget"`
	Description  string `json:"description"`
	DeliveryDays int    `json:"delivery_days"`
}

// IsProposalMessage reports whether body looks like a proposal document.
func IsProposalMessage(body string) bool {
	return gjson.Valid(body) && gjson.Get(body, "type").String() == MessageType
}

// ParseProposalMessage extracts the offer embedded in a chat message body.
func ParseProposalMessage(body string) (Offer, error) {
	if !gjson.Valid(body) {
		return Offer{}, fmt.Errorf("proposal body is not valid JSON")
	}
	doc := gjson.Parse(body)
	if doc.Get("type").String() != MessageType {
		return Offer{}, fmt.Errorf("message is not a proposal")
	}
	budget := doc.Get("budget")
	if budget.Type != gjson.Number || float64(budget.Int()) != budget.Float() {
		return Offer{}, fmt.Errorf("budget must be an integer amount")
	}
	offer := Offer{
		Type:         MessageType,
		Budget:       budget.Int(),
		Description:  strings.TrimSpace(doc.Get("description").String()),
		DeliveryDays: int(doc.Get("delivery_days").Int()),
	}
	if err := offer.Validate(); err != nil {
		return Offer{}, err
	}
	return offer, nil
}

// Validate checks the offer values.
func (o Offer) Validate() error {
	if o.Budget <= 0 {
		return fmt.Errorf("budget must be positive")
	}
	if o.DeliveryDays < 0 {
		return fmt.Errorf("delivery_days must not be negative")
	}
	return nil
}

// Body renders the offer as a chat message body.
func (o Offer) Body() string {
	o.Type = MessageType
	data, _ := json.Marshal(o)
	return string(data)
}
