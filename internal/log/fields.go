package log

// Common field names for structured logging.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldYear       = "year"
	FieldMonth      = "month"

	FieldPaymentID   = "payment_id"
	FieldExternalID  = "external_id"
	FieldAmountCents = "amount_cents"
	FieldSource      = "source"
	FieldChatID      = "chat_id"
	FieldQueue       = "queue"
)

// Components defines standard component names.
const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentBot         = "bot"
	ComponentLedger      = "ledger"
	ComponentStorage     = "storage"
	ComponentAMQP        = "amqp"
	ComponentWorker      = "worker"
	ComponentMercadoPago = "mercadopago"
	ComponentTelegram    = "telegram"
)
