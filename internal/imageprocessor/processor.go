package imageprocessor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var ErrUnsupportedImage = errors.New("unsupported or corrupted image")

// ImageSize - прямоугольник, в который вписывается результат
type ImageSize struct {
	Name   string
	Width  int
	Height int
}

var SizeThumbnail = ImageSize{Name: "thumbnail", Width: 320, Height: 320}

// Result - закодированная картинка
type Result struct {
	Data        []byte
	ContentType string
	Extension   string
	Width       int
	Height      int
}

type Processor struct {
	quality int // JPEG quality (1-100)
}

func NewProcessor(quality int) *Processor {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &Processor{quality: quality}
}

// Thumbnail уменьшает изображение с сохранением пропорций. Картинки меньше size не увеличиваются.
// PNG и GIF кодируются в PNG (прозрачность), остальное в JPEG.
func (p *Processor) Thumbnail(reader io.Reader, size ImageSize) (*Result, error) {
	img, format, err := image.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	resized := p.resize(img, size.Width, size.Height)
	bounds := resized.Bounds()

	var buf bytes.Buffer
	res := &Result{Width: bounds.Dx(), Height: bounds.Dy()}
	switch format {
	case "png", "gif":
		if err := png.Encode(&buf, resized); err != nil {
			return nil, fmt.Errorf("failed to encode PNG: %w", err)
		}
		res.ContentType, res.Extension = "image/png", ".png"
	default:
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: p.quality}); err != nil {
			return nil, fmt.Errorf("failed to encode JPEG: %w", err)
		}
		res.ContentType, res.Extension = "image/jpeg", ".jpg"
	}
	res.Data = buf.Bytes()
	return res, nil
}

func (p *Processor) resize(img image.Image, maxWidth, maxHeight int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxWidth && height <= maxHeight {
		return img
	}

	ratio := float64(width) / float64(height)
	newWidth, newHeight := maxWidth, maxHeight
	if float64(maxWidth)/float64(maxHeight) > ratio {
		newWidth = int(float64(maxHeight) * ratio)
	} else {
		newHeight = int(float64(maxWidth) / ratio)
	}
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// DecodeConfig - формат и размеры без полного декодирования
func DecodeConfig(reader io.Reader) (format string, width, height int, err error) {
	cfg, format, err := image.DecodeConfig(reader)
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return format, cfg.Width, cfg.Height, nil
}
