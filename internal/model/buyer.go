package model

// Buyer is the identity attached to a request. A zero UserID is a guest.
type Buyer struct {
	UserID string
	Email  string
	Staff  bool
}

func (b *Buyer) IsGuest() bool {
	return b == nil || b.UserID == ""
}
