/*
Package notify forwards session change events to a message broker.

PURPOSE:
  Every budget or expense mutation of a session is turned into a small
  JSON ChangeMessage and published to a durable direct exchange, so that
  other processes (sync workers, dashboards) can react without polling
  the data files. Messages only say what changed; consumers re-read the
  data they need.

SEE ALSO:
  - publisher.go: AMQP publisher
  - forward.go: Session subscriber that publishes every event
*/
package notify

import (
	"encoding/json"
	"time"

	"github.com/warp/expense-engine/finance"
)

// ChangeMessage describes one mutation of a user's data.
type ChangeMessage struct {
	Username  string    `json:"username"`
	Kind      string    `json:"kind"`
	ExpenseID string    `json:"expense_id,omitempty"`
	Month     string    `json:"month,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeMessage builds the message for ev.
func NewChangeMessage(username string, ev finance.Event, now time.Time) ChangeMessage {
	msg := ChangeMessage{
		Username:  username,
		Kind:      string(ev.Kind),
		ExpenseID: string(ev.ExpenseID),
		Timestamp: now.UTC(),
	}
	if !ev.Month.IsZero() {
		msg.Month = ev.Month.String()
	}
	return msg
}

func (m ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (ChangeMessage, error) {
	var msg ChangeMessage
	err := json.Unmarshal(data, &msg)
	return msg, err
}
