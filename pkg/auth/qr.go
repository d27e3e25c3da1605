package auth

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/pquerna/otp"
)

const defaultQRSize = 200

// QRCodePNG renders a provisioning URI as a PNG image of size×size pixels.
func QRCodePNG(uri string, size int) ([]byte, error) {
	if size <= 0 {
		size = defaultQRSize
	}

	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to parse provisioning URI: %w", err)
	}

	img, err := key.Image(size, size)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}
	return buf.Bytes(), nil
}

// QRCodeDataURI renders a provisioning URI as a data:image/png;base64 URI.
func QRCodeDataURI(uri string, size int) (string, error) {
	b, err := QRCodePNG(uri, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(b), nil
}
