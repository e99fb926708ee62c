package render

import (
	"context"
	"fmt"

	"github.com/agrimacro/agrimacro/internal/bundle"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/paths"
	"github.com/agrimacro/agrimacro/internal/store"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// WriteReportDaily generates the report narrative and writes processed/report_daily.json
func WriteReportDaily(ctx context.Context, gen ContentGenerator, b *bundle.Bundle, p paths.Paths, log *logger.Logger) (contracts.ReportDaily, error) {
	raw, err := gen.Generate(ctx, b, SchemaReportDaily)
	if err != nil {
		return contracts.ReportDaily{}, fmt.Errorf("failed to generate report narrative: %w", err)
	}

	r, err := DecodeReport(raw, b)
	if err != nil {
		return r, err
	}
	if r.Generator == "" {
		r.Generator = gen.Name()
	}

	if err := store.WriteJSON(p.ProcessedFile(bundle.FileReport), r); err != nil {
		return r, fmt.Errorf("failed to write report narrative: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"generator": r.Generator,
		"sections":  len(r.Sections),
		"scalars":   len(r.Scalars),
	}).Info("report narrative written")
	return r, nil
}
