package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"reportsigner/internal/config"
)

// Encoder turns text into a QR image.
type Encoder interface {
	// Encode returns PNG bytes for the given text.
	Encode(text string) ([]byte, error)
}

type pngEncoder struct {
	size int
}

// NewEncoder returns a PNG QR encoder with the configured pixel size.
func NewEncoder(cfg config.QRConfig) Encoder {
	size := cfg.Size
	if size <= 0 {
		size = 150
	}
	return &pngEncoder{size: size}
}

func (e *pngEncoder) Encode(text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("qr text is empty")
	}
	png, err := qrcode.Encode(text, qrcode.Medium, e.size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
