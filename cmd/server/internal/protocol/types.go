package protocol

import "github.com/Samane-mnejad/real-time-trading/pkg/models"

const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"

	TypeInitialPrices         = "initialPrices"
	TypePriceUpdate           = "priceUpdate"
	TypeSubscriptionSuccess   = "subscriptionSuccess"
	TypeUnsubscriptionSuccess = "unsubscriptionSuccess"
)

// ClientMessage is the inbound frame, discriminated by Type.
type ClientMessage struct {
	Type    string   `json:"type"`
	Tickers []string `json:"tickers"`
}

// SnapshotMessage carries the full initial price set.
type SnapshotMessage struct {
	Type string              `json:"type"`
	Data []models.PricePoint `json:"data"`
}

// UpdateMessage carries one fan-out price update.
type UpdateMessage struct {
	Type string            `json:"type"`
	Data models.PricePoint `json:"data"`
}

// SubscriptionMessage acknowledges a subscribe/unsubscribe with the
// connection's full current interest set.
type SubscriptionMessage struct {
	Type    string   `json:"type"`
	Tickers []string `json:"tickers"`
}

// ErrorMessage is the bare protocol-level failure frame. It carries no
// Type field on purpose; clients key off "error".
type ErrorMessage struct {
	Error string `json:"error"`
}
