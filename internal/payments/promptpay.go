package payments

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PromptPay builds EMVCo merchant-presented QR payloads for the Thai
// PromptPay rail, addressed to a phone number. It satisfies QRGenerator;
// the PNG rendering is left to the client, which gets the raw payload.
type PromptPay struct {
	PhoneNumber string
}

const promptPayAID = "A000000677010111"

func (p PromptPay) Generate(amount decimal.Decimal, reference string) (QRCode, error) {
	phone := normalizePhone(p.PhoneNumber)
	if phone == "" {
		return QRCode{}, fmt.Errorf("promptpay: invalid phone number %q", p.PhoneNumber)
	}

	var b strings.Builder
	writeTLV(&b, "00", "01") // payload format indicator
	writeTLV(&b, "01", "12") // dynamic: payload carries an amount

	var merchant strings.Builder
	writeTLV(&merchant, "00", promptPayAID)
	writeTLV(&merchant, "01", phone)
	writeTLV(&b, "29", merchant.String())

	writeTLV(&b, "58", "TH")
	writeTLV(&b, "53", "764") // ISO 4217 THB
	writeTLV(&b, "54", amount.StringFixed(2))

	payload := b.String() + "6304"
	payload += fmt.Sprintf("%04X", crc16(payload))
	return QRCode{Payload: payload}, nil
}

func writeTLV(b *strings.Builder, id, value string) {
	fmt.Fprintf(b, "%s%02d%s", id, len(value), value)
}

// normalizePhone converts a local Thai number (0812345678) to the 13-digit
// wire form 0066812345678.
func normalizePhone(s string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)

	switch {
	case strings.HasPrefix(digits, "0066"):
	case strings.HasPrefix(digits, "66"):
		digits = "00" + digits
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		digits = "0066" + digits[1:]
	default:
		return ""
	}
	if len(digits) != 13 {
		return ""
	}
	return digits
}

// crc16 is CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF), the checksum EMVCo
// specifies for QR payloads.
func crc16(s string) uint16 {
	crc := uint16(0xFFFF)
	for i := 0; i < len(s); i++ {
		crc ^= uint16(s[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
