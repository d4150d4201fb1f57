// Package qr renders scannable payloads as images. The codec is a black
// box: payload string in, PNG bytes out. Decoding happens on the camera
// device, never here.
package qr

import qrcode "github.com/skip2/go-qrcode"

// DefaultSize matches the on-screen size used by the original client.
const DefaultSize = 180

// Encoder turns a payload into a scannable image.
type Encoder interface {
	Encode(payload string, size int) ([]byte, error)
}

// PNGEncoder encodes payloads as PNG QR codes with medium error recovery.
type PNGEncoder struct {
	level qrcode.RecoveryLevel
}

// NewPNGEncoder creates the default encoder.
func NewPNGEncoder() *PNGEncoder {
	return &PNGEncoder{level: qrcode.Medium}
}

// Encode renders payload into a size x size PNG.
func (e *PNGEncoder) Encode(payload string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(payload, e.level, size)
}
