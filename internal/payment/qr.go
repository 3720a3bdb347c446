package payment

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// GenerateQRCode renders the payment reference a customer scans to pay a
// QRCode-method payment. Returns a PNG.
func GenerateQRCode(paymentID, orderID string, amount float64) ([]byte, error) {
	content := fmt.Sprintf("restaurant-pay://payment/%s?order=%s&amount=%.2f", paymentID, orderID, amount)
	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("generating payment QR code: %w", err)
	}
	return png, nil
}
