package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mobatt/mobatt-backend/internal/logger"
)

// RevalidateService asks the frontend to rebuild a statically generated page
// after its underlying record changed.
type RevalidateService interface {
	Revalidate(ctx context.Context, path string) error
}

type revalidateService struct {
	log        *logger.Logger
	endpoint   string
	secret     string
	httpClient *http.Client
}

func NewRevalidateService(log *logger.Logger) RevalidateService {
	endpoint := strings.TrimSpace(os.Getenv("REVALIDATE_ENDPOINT"))
	secret := strings.TrimSpace(os.Getenv("REVALIDATE_SECRET"))
	serviceLog := log.With("service", "RevalidateService")
	if endpoint == "" {
		serviceLog.Warn("REVALIDATE_ENDPOINT not set, page rebuilds disabled")
	}
	return &revalidateService{
		log:        serviceLog,
		endpoint:   endpoint,
		secret:     secret,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *revalidateService) Revalidate(ctx context.Context, path string) error {
	if s.endpoint == "" {
		return nil
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("revalidate path must start with /: %q", path)
	}

	body, err := json.Marshal(map[string]string{"secret": s.secret, "path": path})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revalidate request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("revalidate %s: http %d: %s", path, resp.StatusCode, string(raw))
	}
	s.log.Info("page revalidated", "path", path)
	return nil
}
