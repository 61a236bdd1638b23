package amqp

import (
	"testing"
	"time"
)

func TestNewPaymentNoticeMessage(t *testing.T) {
	msg := NewPaymentNoticeMessage(42)
	if msg.ID != 42 {
		t.Errorf("ID = %d, want 42", msg.ID)
	}
	if msg.Timestamp.IsZero() || time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestPaymentNoticeMessageInvalidJSON(t *testing.T) {
	if _, err := PaymentNoticeMessageFromJSON([]byte(`{"id": "nope"}`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
