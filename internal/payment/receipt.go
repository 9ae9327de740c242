package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"invoice-service/internal/billing"
)

const receiptPrefix = "receipt_invoice_"

// ReceiptForInvoice is the receipt tag that links a gateway order back to an invoice.
func ReceiptForInvoice(invoiceID uint) string {
	return fmt.Sprintf("%s%d", receiptPrefix, invoiceID)
}

// ParseReceipt extracts the invoice id from a receipt_invoice_<id> tag.
// Anything that does not split into exactly those three parts yields ok=false.
func ParseReceipt(receipt string) (id string, ok bool) {
	parts := strings.Split(receipt, "_")
	if len(parts) != 3 || parts[0] != "receipt" || parts[1] != "invoice" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}

var minorPerMajor = decimal.NewFromInt(100)

// ToMinorUnits converts a major-unit amount to the gateway's minor units.
// It assumes two decimal currencies (INR, USD); zero and three decimal
// currencies would need a per-currency exponent.
// ok is false for amounts that are negative or larger than billing.MaxAmount.
func ToMinorUnits(amount billing.Amount) (minor int64, ok bool) {
	if amount.IsNegative() || amount.GreaterThan(billing.MaxAmount) {
		return 0, false
	}
	return amount.Mul(minorPerMajor).Round(0).IntPart(), true
}

// Signature is the hex HMAC-SHA256 of "orderID|paymentID" under secret.
func Signature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	expected := Signature(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
