package services

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"os"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	"github.com/mobatt/mobatt-backend/internal/logger"
)

const (
	ogWidth  = 1200
	ogHeight = 630

	thumbWidth  = 640
	thumbHeight = 360
)

// BlogImageService renders the social card and thumbnail PNGs for a post and
// uploads them under deterministic keys, so re-generation overwrites in place
// and the page URLs never change.
type BlogImageService interface {
	RenderAndUpload(ctx context.Context, slug, title, subtitle string) (ogURL string, thumbURL string, err error)
}

type blogImageService struct {
	log           *logger.Logger
	bucketService BucketService

	titleFace    font.Face
	subtitleFace font.Face
	thumbFace    font.Face
}

func NewBlogImageService(log *logger.Logger, bucketService BucketService) (BlogImageService, error) {
	serviceLog := log.With("service", "BlogImageService")

	fontPath := os.Getenv("BLOG_IMAGE_FONT")
	if strings.TrimSpace(fontPath) == "" {
		return nil, fmt.Errorf("env var BLOG_IMAGE_FONT is empty")
	}
	serviceLog.Info("Loading blog image font", "font", fontPath)

	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}

	newFace := func(size float64) font.Face {
		return truetype.NewFace(parsedFont, &truetype.Options{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingNone,
		})
	}

	return &blogImageService{
		log:           serviceLog,
		bucketService: bucketService,
		titleFace:     newFace(64),
		subtitleFace:  newFace(32),
		thumbFace:     newFace(36),
	}, nil
}

func OGImageKey(slug string) string   { return fmt.Sprintf("og/blogs/%s.png", slug) }
func ThumbnailKey(slug string) string { return fmt.Sprintf("thumbnails/blogs/%s.png", slug) }

func (s *blogImageService) RenderAndUpload(ctx context.Context, slug, title, subtitle string) (string, string, error) {
	if strings.TrimSpace(slug) == "" {
		return "", "", fmt.Errorf("slug required")
	}

	ogBuf, err := s.renderCard(ogWidth, ogHeight, s.titleFace, s.subtitleFace, title, subtitle)
	if err != nil {
		return "", "", fmt.Errorf("render og image: %w", err)
	}
	thumbBuf, err := s.renderCard(thumbWidth, thumbHeight, s.thumbFace, nil, title, "")
	if err != nil {
		return "", "", fmt.Errorf("render thumbnail: %w", err)
	}

	ogKey := OGImageKey(slug)
	if err := s.bucketService.UploadFile(ctx, ogKey, bytes.NewReader(ogBuf.Bytes())); err != nil {
		return "", "", fmt.Errorf("upload og image: %w", err)
	}
	thumbKey := ThumbnailKey(slug)
	if err := s.bucketService.UploadFile(ctx, thumbKey, bytes.NewReader(thumbBuf.Bytes())); err != nil {
		// don't leave a half-uploaded pair behind; both get re-rendered next run
		if delErr := s.bucketService.DeleteFile(ctx, ogKey); delErr != nil {
			s.log.Warn("failed to remove og image after thumbnail upload error", "key", ogKey, "error", delErr)
		}
		return "", "", fmt.Errorf("upload thumbnail: %w", err)
	}

	return s.bucketService.GetPublicURL(ogKey), s.bucketService.GetPublicURL(thumbKey), nil
}

func (s *blogImageService) renderCard(w, h int, titleFace, subtitleFace font.Face, title, subtitle string) (bytes.Buffer, error) {
	var buf bytes.Buffer

	dc := gg.NewContext(w, h)

	// Vertical gradient background
	grad := gg.NewLinearGradient(0, 0, 0, float64(h))
	grad.AddColorStop(0, color.NRGBA{R: 0x0F, G: 0x17, B: 0x2A, A: 0xFF})
	grad.AddColorStop(1, color.NRGBA{R: 0x1E, G: 0x3A, B: 0x5F, A: 0xFF})
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, float64(w), float64(h))
	dc.Fill()

	// Accent bar
	dc.SetColor(color.NRGBA{R: 0x38, G: 0xBD, B: 0xF8, A: 0xFF})
	dc.DrawRectangle(0, float64(h)-12, float64(w), 12)
	dc.Fill()

	margin := float64(w) / 15

	dc.SetFontFace(titleFace)
	dc.SetColor(color.White)
	dc.DrawStringWrapped(truncateRunes(title, 80), margin, float64(h)*0.28, 0, 0, float64(w)-2*margin, 1.3, gg.AlignLeft)

	if subtitleFace != nil && strings.TrimSpace(subtitle) != "" {
		dc.SetFontFace(subtitleFace)
		dc.SetColor(color.NRGBA{R: 0xCB, G: 0xD5, B: 0xE1, A: 0xFF})
		dc.DrawStringWrapped(truncateRunes(subtitle, 120), margin, float64(h)*0.68, 0, 0, float64(w)-2*margin, 1.3, gg.AlignLeft)
	}

	if err := dc.EncodePNG(&buf); err != nil {
		return buf, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf, nil
}

func truncateRunes(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max-1]) + "…"
}
