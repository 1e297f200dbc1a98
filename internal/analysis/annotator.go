package analysis

import (
	"context"
	"fmt"

	"loom/internal/atoms"
	"loom/internal/knowledge"
	"loom/internal/logging"
	"loom/internal/services/llm"
)

const defaultAnnotationBatch = 10

// annotationPayload is the JSON shape the annotation prompt requests: one
// record per atom in the batch.
type annotationPayload struct {
	Annotations []struct {
		AtomID   string   `json:"atom_id"`
		Topics   []string `json:"topics"`
		Entities []string `json:"entities"`
		Emotion  struct {
			Type  string  `json:"type"`
			Score float64 `json:"score"`
		} `json:"emotion"`
	} `json:"annotations"`
}

// annotateAtoms tags every atom in the segment with topics, entities, and
// emotion, batched to keep prompts inside the model's context. Unlike deep
// analysis there is no fallback: an undecodable annotation batch fails the
// segment, because partial annotation documents are worse than none.
func (a *Analyzer) annotateAtoms(ctx context.Context, segmentID string, resolved []atoms.Atom) ([]knowledge.Annotation, error) {
	var annotations []knowledge.Annotation
	for start := 0; start < len(resolved); start += a.annotationBatch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + a.annotationBatch
		if end > len(resolved) {
			end = len(resolved)
		}
		batch := resolved[start:end]

		content, err := a.completer.CompleteJSON(ctx, annotationSystemPrompt, buildAnnotationPrompt(batch))
		if err != nil {
			return nil, fmt.Errorf("annotate atoms %d-%d of %s: %w", start, end-1, segmentID, err)
		}
		var payload annotationPayload
		if err := llm.DecodeLLMJSON(content, &payload); err != nil {
			return nil, fmt.Errorf("annotate atoms %d-%d of %s: decode: %w", start, end-1, segmentID, err)
		}

		known := make(map[string]struct{}, len(batch))
		for _, atom := range batch {
			known[atom.AtomID] = struct{}{}
		}
		for _, record := range payload.Annotations {
			if _, ok := known[record.AtomID]; !ok {
				a.logger.Warn("annotation for unknown atom discarded",
					logging.String(logging.FieldSegment, segmentID),
					logging.String("atom_id", record.AtomID))
				continue
			}
			annotations = append(annotations, knowledge.Annotation{
				AtomID:    record.AtomID,
				SegmentID: segmentID,
				Topics:    compactStrings(record.Topics),
				Entities:  compactStrings(record.Entities),
				Emotion: knowledge.Emotion{
					Type:  record.Emotion.Type,
					Score: record.Emotion.Score,
				},
			})
		}
	}
	return annotations, nil
}
