package biometric

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
)

// ErrInvalidImage is returned when captured image data cannot be decoded.
var ErrInvalidImage = errors.New("biometric: invalid image data")

// Image is a decoded capture ready to be sent to the embedding oracle.
type Image struct {
	Data   []byte // raw encoded bytes (jpeg, png or gif)
	Format string // format name reported by the decoder
	Width  int
	Height int
}

// DataURL re-encodes the capture as a base64 data URL.
func (img Image) DataURL() string {
	return "data:image/" + img.Format + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// DecodeImage accepts either a bare base64 payload or a data URL
// ("data:image/jpeg;base64,....") and validates that it holds an image.
func DecodeImage(raw string) (Image, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, ','); i >= 0 {
		raw = raw[i+1:]
	}
	if raw == "" {
		return Image{}, ErrInvalidImage
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		// some browsers strip the padding
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(raw, "="))
		if err != nil {
			return Image{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return Image{}, ErrInvalidImage
	}
	return Image{Data: data, Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// ParseTemplate decodes a stored face template, a JSON array of numbers.
func ParseTemplate(raw string) (Embedding, error) {
	var emb Embedding
	if err := json.Unmarshal([]byte(raw), &emb); err != nil {
		return nil, fmt.Errorf("biometric: parse template: %w", err)
	}
	if len(emb) == 0 {
		return nil, errors.New("biometric: empty template")
	}
	return emb, nil
}
