package logkey

const (
	Error            = "error"
	RequestID        = "request_id"
	UserID           = "user_id"
	SessionID        = "session_id"
	OrderID          = "order_id"
	OrderItemID      = "order_item_id"
	ProductID        = "product_id"
	PaymentReference = "payment_reference"
	EventID          = "event_id"
	EventType        = "event_type"
	Provider         = "provider"
	Source           = "source"
	Status           = "status"
)
