package payments

import "github.com/shopspring/decimal"

// QRCode is a generated payment QR: the raw PromptPay payload plus a PNG
// rendering of it.
type QRCode struct {
	Payload string
	PNG     []byte
}

// QRGenerator produces a payment QR for an amount and a human-readable
// reference (the order number). Payload and image generation are external
// concerns; the core only consumes this contract.
type QRGenerator interface {
	Generate(amount decimal.Decimal, reference string) (QRCode, error)
}
