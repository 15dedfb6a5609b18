package model

const (
	IntentStatusSucceeded  = "succeeded"
	IntentStatusProcessing = "processing"
	IntentStatusFailed     = "failed"
)

const (
	EventPaymentSucceeded  = "payment_intent.succeeded"
	EventPaymentFailed     = "payment_intent.payment_failed"
	EventPaymentProcessing = "payment_intent.processing"
)

type IntentRequest struct {
	AmountMinor  int64
	Currency     string
	Metadata     map[string]string
	ReceiptEmail string
}

// PaymentIntent is the provider-neutral view of a gateway payment attempt.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountMinor  int64
	Currency     string
	Metadata     map[string]string
	ReceiptEmail string
}

func (p *PaymentIntent) Succeeded() bool {
	return p.Status == IntentStatusSucceeded
}

// GatewayEvent is a verified webhook notification.
type GatewayEvent struct {
	ID     string
	Type   string
	Intent PaymentIntent
}
