package amqp

import (
	"encoding/json"
	"time"
)

// PaymentNoticeMessage asks the notify worker to deliver the admin alert
// for one freshly inserted payment. It carries only the row id; the
// worker fetches the full payment from the ledger.
type PaymentNoticeMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPaymentNoticeMessage(id int64) *PaymentNoticeMessage {
	return &PaymentNoticeMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *PaymentNoticeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func PaymentNoticeMessageFromJSON(data []byte) (*PaymentNoticeMessage, error) {
	var msg PaymentNoticeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
