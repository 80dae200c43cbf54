// Package qr renders short URLs as QR code images.
package qr

import (
	"errors"

	qrcode "github.com/skip2/go-qrcode"
)

// ImageSize is the edge length in pixels of the rendered PNG.
const ImageSize = 256

// PNG encodes content as a QR code PNG.
func PNG(content string) ([]byte, error) {
	if content == "" {
		return nil, errors.New("content cannot be empty")
	}
	return qrcode.Encode(content, qrcode.Medium, ImageSize)
}
