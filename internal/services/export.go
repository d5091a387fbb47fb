package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veilhq/veil-backend/internal/logger"
)

// ExportService serializes what the gate already decided to show. It never
// touches threads or submissions directly: everything flows through
// AggregateService, so an export carries exactly what the UI would show.
type ExportService interface {
	ExportCSV(ctx context.Context, orgID uuid.UUID) ([]byte, error)
	ExportJSON(ctx context.Context, orgID uuid.UUID) ([]byte, error)
	ExportToBucket(ctx context.Context, orgID uuid.UUID, format string) (string, error)
}

type exportService struct {
	log       *logger.Logger
	aggregate AggregateService
	bucket    BucketService
}

func NewExportService(log *logger.Logger, aggregate AggregateService, bucket BucketService) ExportService {
	serviceLog := log.With("service", "ExportService")
	return &exportService{log: serviceLog, aggregate: aggregate, bucket: bucket}
}

func (s *exportService) ExportCSV(ctx context.Context, orgID uuid.UUID) ([]byte, error) {
	views, err := s.aggregate.ThreadViews(ctx, orgID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"thread_id", "channel", "render_state", "approx_participants", "content"}); err != nil {
		return nil, err
	}
	for _, v := range views {
		content := v.SuppressedNotice
		if v.Decision.Visible() {
			content = strings.Join(v.Messages, " | ")
		}
		if err := w.Write([]string{
			v.ThreadID.String(),
			v.Channel,
			string(v.Decision.RenderState),
			strconv.Itoa(v.NoisedCount),
			content,
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *exportService) ExportJSON(ctx context.Context, orgID uuid.UUID) ([]byte, error) {
	views, err := s.aggregate.ThreadViews(ctx, orgID)
	if err != nil {
		return nil, err
	}
	themes, err := s.aggregate.ThemeViews(ctx, orgID)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"threads":      views,
		"themes":       themes,
	}
	return json.MarshalIndent(payload, "", "  ")
}

func (s *exportService) ExportToBucket(ctx context.Context, orgID uuid.UUID, format string) (string, error) {
	if s.bucket == nil {
		return "", fmt.Errorf("no bucket configured for export storage")
	}
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(format) {
	case "csv":
		data, err = s.ExportCSV(ctx, orgID)
	case "json":
		data, err = s.ExportJSON(ctx, orgID)
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("exports/%s/%s.%s", orgID, time.Now().UTC().Format("20060102T150405Z"), strings.ToLower(format))
	if err := s.bucket.UploadFile(ctx, key, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to upload export: %w", err)
	}
	return key, nil
}
