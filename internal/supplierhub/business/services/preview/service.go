package preview

import (
	"context"
	"fmt"

	"supplierhub_api/internal/supplierhub/business/models"
	"supplierhub_api/internal/supplierhub/business/services/diff"
	"supplierhub_api/internal/supplierhub/business/services/normalize"
	"supplierhub_api/internal/supplierhub/business/services/validate"
)

const defaultLimit = 20

// Row is one previewed feed record after mapping and validation.
type Row struct {
	Key      string   `json:"key"`
	Price    *float64 `json:"price,omitempty"`
	Qty      int      `json:"qty"`
	Variant  string   `json:"variant,omitempty"`
	Active   *string  `json:"active,omitempty"`
	OK       bool     `json:"ok"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Result is the preview response: the first rows of the feed plus
// aggregate parse facts.
type Result struct {
	Format    string `json:"format"`
	Rows      []Row  `json:"rows"`
	Scanned   int    `json:"scanned"`
	Valid     int    `json:"valid"`
	Invalid   int    `json:"invalid"`
	Truncated bool   `json:"truncated"`
}

// Service fetches and maps the head of a feed without touching the
// catalog, for verifying source configuration.
type Service struct {
	sources    sourceStore
	loader     diff.FeedLoader
	normalizer *normalize.Normalizer
}

type sourceStore interface {
	GetSource(id int) (*models.Source, error)
}

func NewService(sources sourceStore, loader diff.FeedLoader) *Service {
	return &Service{sources: sources, loader: loader, normalizer: normalize.NewNormalizer()}
}

// Preview parses the feed and returns up to limit mapped rows. The whole
// stream is scanned so the valid/invalid counters cover the full feed.
func (s *Service) Preview(ctx context.Context, sourceID, limit int) (*Result, error) {
	src, err := s.sources.GetSource(sourceID)
	if err != nil {
		return nil, fmt.Errorf("load source %d: %w", sourceID, err)
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	stream, format, err := s.loader.Load(ctx, src)
	if err != nil {
		return nil, err
	}

	res := &Result{Format: format, Rows: make([]Row, 0, limit)}
	for {
		raw, ok := stream.Next()
		if !ok {
			break
		}
		res.Scanned++

		rec := s.normalizer.Normalize(raw, src)
		val := validate.Validate(rec)
		if val.OK {
			res.Valid++
		} else {
			res.Invalid++
		}

		if len(res.Rows) < limit {
			res.Rows = append(res.Rows, Row{
				Key:      rec.Key,
				Price:    val.Price,
				Qty:      val.Qty,
				Variant:  rec.Variant,
				Active:   rec.Active,
				OK:       val.OK,
				Errors:   val.Errors,
				Warnings: append(rec.Warnings, val.Warnings...),
			})
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("read feed for source %d: %w", sourceID, err)
	}
	res.Truncated = stream.Truncated()
	return res, nil
}
