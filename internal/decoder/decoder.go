package decoder

import (
	"fmt"
	"image"

	"github.com/liyue201/goqr"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Decoder extracts at most one QR payload from a raster. A frame without a
// code is the normal case and reports ok=false, never an error.
type Decoder interface {
	Decode(img image.Image) (payload string, ok bool)
}

// New returns the decoder registered under name.
func New(name string, tryHarder bool) (Decoder, error) {
	switch name {
	case "", "gozxing":
		return NewZXing(tryHarder), nil
	case "goqr":
		return GoQR{}, nil
	default:
		return nil, fmt.Errorf("unknown decoder %q", name)
	}
}

// ZXing decodes with gozxing. Only normal polarity (dark modules on a light
// background) is searched; inverted codes are not attempted.
type ZXing struct {
	reader gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}
}

func NewZXing(tryHarder bool) *ZXing {
	hints := map[gozxing.DecodeHintType]interface{}{}
	if tryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	return &ZXing{
		reader: qrcode.NewQRCodeReader(),
		hints:  hints,
	}
}

func (z *ZXing) Decode(img image.Image) (string, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false
	}
	result, err := z.reader.Decode(bmp, z.hints)
	if err != nil || result == nil {
		return "", false
	}
	text := result.GetText()
	return text, text != ""
}

// GoQR decodes with the quirc port, which copes better with skewed codes.
type GoQR struct{}

func (GoQR) Decode(img image.Image) (string, bool) {
	codes, err := goqr.Recognize(img)
	if err != nil || len(codes) == 0 {
		return "", false
	}
	payload := string(codes[0].Payload)
	return payload, payload != ""
}
