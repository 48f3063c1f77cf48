package service

import (
	"context"
	"log/slog"

	"github.com/sakif/linkbio/internal/enrich"
	"github.com/sakif/linkbio/internal/metrics"
)

// ImportService runs enrichment on behalf of a signed-in owner. It never
// writes to a profile; the owner's draft decides what to merge.
type ImportService struct {
	importer enrich.Importer
	logger   *slog.Logger
}

func NewImportService(importer enrich.Importer, logger *slog.Logger) *ImportService {
	return &ImportService{importer: importer, logger: logger}
}

// Import returns the tagged result for rawURL. Only unusable input is an
// error; upstream trouble is reported through Result.Kind.
func (s *ImportService) Import(ctx context.Context, accountID, rawURL string) (enrich.Result, error) {
	res, err := s.importer.Import(ctx, rawURL)
	if err != nil {
		return enrich.Result{}, err
	}
	metrics.Imports.WithLabelValues(string(res.Kind)).Inc()

	attrs := []any{
		slog.String("accountID", accountID),
		slog.String("kind", string(res.Kind)),
		slog.Int("links", len(res.Profile.Links)),
	}
	if res.Err != nil {
		attrs = append(attrs, slog.String("error", res.Err.Error()))
	}
	s.logger.Info("import finished", attrs...)
	return res, nil
}
