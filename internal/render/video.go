package render

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/asticode/go-astisub"

	"github.com/agrimacro/agrimacro/internal/bundle"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/paths"
	"github.com/agrimacro/agrimacro/internal/store"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// VideoScriptRenderer writes the narrated script and its subtitles.
// mp4 인코딩은 외부 도구 담당
type VideoScriptRenderer struct {
	gen    ContentGenerator
	paths  paths.Paths
	logger *logger.Logger
}

// NewVideoScriptRenderer creates a VideoScriptRenderer
func NewVideoScriptRenderer(gen ContentGenerator, p paths.Paths, log *logger.Logger) *VideoScriptRenderer {
	return &VideoScriptRenderer{gen: gen, paths: p, logger: log.WithField("module", "video")}
}

// Render writes processed/video_script.json and reports/agrimacro_DATE.srt
func (r *VideoScriptRenderer) Render(ctx context.Context, b *bundle.Bundle) (contracts.VideoScript, error) {
	raw, err := r.gen.Generate(ctx, b, SchemaVideoScript)
	if err != nil {
		return contracts.VideoScript{}, &contracts.RenderError{Artifact: bundle.FileVideo, Err: err}
	}
	script, err := DecodeScript(raw, b)
	if err != nil {
		return script, &contracts.RenderError{Artifact: bundle.FileVideo, Err: err}
	}

	if err := store.WriteJSON(r.paths.ProcessedFile(bundle.FileVideo), script); err != nil {
		return script, &contracts.RenderError{Artifact: bundle.FileVideo, Err: err}
	}

	srt, err := Subtitles(script)
	if err != nil {
		return script, &contracts.RenderError{Artifact: "srt", Err: err}
	}
	if err := store.WriteFile(r.paths.ReportFile(b.Date, "srt"), srt); err != nil {
		return script, &contracts.RenderError{Artifact: "srt", Err: err}
	}

	r.logger.WithFields(map[string]interface{}{
		"scenes":   len(script.Scenes),
		"duration": totalDuration(script),
	}).Info("video script written")
	return script, nil
}

// Subtitles encodes one cue per scene as SRT
func Subtitles(script contracts.VideoScript) ([]byte, error) {
	subs := astisub.NewSubtitles()
	var at time.Duration
	for _, s := range script.Scenes {
		d := time.Duration(s.DurationS) * time.Second
		subs.Items = append(subs.Items, &astisub.Item{
			StartAt: at,
			EndAt:   at + d,
			Lines:   []astisub.Line{{Items: []astisub.LineItem{{Text: s.Narration}}}},
		})
		at += d
	}

	var buf bytes.Buffer
	if err := subs.WriteToSRT(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode subtitles: %w", err)
	}
	return buf.Bytes(), nil
}

func totalDuration(script contracts.VideoScript) int {
	total := 0
	for _, s := range script.Scenes {
		total += s.DurationS
	}
	return total
}
