package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"loom/internal/atoms"
	"loom/internal/knowledge"
	"loom/internal/logging"
	"loom/internal/segments"
	"loom/internal/services/llm"
)

const defaultDecodeRetries = 2

// ChatCompleter is the LLM boundary: a JSON-mode chat completion call.
type ChatCompleter interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Result is one segment's analysis outcome. Fallback reports that the model
// never produced parsable output and the deterministic default structure
// was used instead: the segment counts as processed, not as understood.
type Result struct {
	SegmentID string
	Title     string
	Summary   string
	Fragment  knowledge.Fragment
	Fallback  bool
}

// Analyzer runs deep analysis and atom annotation for one segment at a time.
type Analyzer struct {
	completer ChatCompleter
	norm      *knowledge.Normalizer
	logger    *slog.Logger

	decodeRetries   int
	annotationBatch int
}

// AnalyzerOption customizes an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithDecodeRetries bounds how often a malformed deep-analysis payload is
// re-requested before falling back to the default structure.
func WithDecodeRetries(retries int) AnalyzerOption {
	return func(a *Analyzer) {
		if retries >= 0 {
			a.decodeRetries = retries
		}
	}
}

// WithAnnotationBatchSize sets how many atoms go into one annotation call.
func WithAnnotationBatchSize(size int) AnalyzerOption {
	return func(a *Analyzer) {
		if size > 0 {
			a.annotationBatch = size
		}
	}
}

// NewAnalyzer constructs an Analyzer.
func NewAnalyzer(completer ChatCompleter, norm *knowledge.Normalizer, logger *slog.Logger, opts ...AnalyzerOption) *Analyzer {
	if norm == nil {
		norm = knowledge.DefaultNormalizer()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	a := &Analyzer{
		completer:       completer,
		norm:            norm,
		logger:          logger,
		decodeRetries:   defaultDecodeRetries,
		annotationBatch: defaultAnnotationBatch,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// deepAnalysisPayload is the JSON shape the deep-analysis prompt requests.
type deepAnalysisPayload struct {
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Entities struct {
		Persons       []string `json:"persons"`
		Countries     []string `json:"countries"`
		Organizations []string `json:"organizations"`
		TimePoints    []string `json:"time_points"`
		Events        []string `json:"events"`
		Concepts      []string `json:"concepts"`
	} `json:"entities"`
	Topics struct {
		PrimaryTopic    string   `json:"primary_topic"`
		SecondaryTopics []string `json:"secondary_topics"`
		FreeTags        []string `json:"free_tags"`
	} `json:"topics"`
}

// AnalyzeSegment performs deep analysis plus atom annotation on a segment's
// resolved atoms and assembles the fragment that the aggregator merges.
// LLM transport errors propagate; malformed payloads degrade to the default
// structure after bounded re-requests.
func (a *Analyzer) AnalyzeSegment(ctx context.Context, seg segments.Segment, resolved []atoms.Atom) (*Result, error) {
	if len(resolved) == 0 {
		return nil, fmt.Errorf("segment %s has no atoms", seg.SegmentID)
	}

	payload, fallback, err := a.deepAnalyze(ctx, seg, resolved)
	if err != nil {
		return nil, err
	}

	annotations, err := a.annotateAtoms(ctx, seg.SegmentID, resolved)
	if err != nil {
		return nil, err
	}

	entityFragments := a.locateEntities(payload, resolved)
	topicFragment := knowledge.TopicFragment{
		Primary:   compactStrings([]string{payload.Topics.PrimaryTopic}),
		Secondary: compactStrings(payload.Topics.SecondaryTopics),
		Tags:      compactStrings(payload.Topics.FreeTags),
	}

	fragment := knowledge.Fragment{
		SegmentID:   seg.SegmentID,
		Entities:    entityFragments,
		Topics:      topicFragment,
		Graph:       knowledge.BuildGraphFragment(a.norm, entityFragments, topicFragment),
		Annotations: annotations,
	}

	return &Result{
		SegmentID: seg.SegmentID,
		Title:     payload.Title,
		Summary:   payload.Summary,
		Fragment:  fragment,
		Fallback:  fallback,
	}, nil
}

// deepAnalyze requests the segment analysis, re-requesting on undecodable
// payloads up to the retry bound, then returning the default structure.
func (a *Analyzer) deepAnalyze(ctx context.Context, seg segments.Segment, resolved []atoms.Atom) (deepAnalysisPayload, bool, error) {
	userPrompt := buildDeepAnalysisPrompt(seg, resolved)

	var lastErr error
	for attempt := 0; attempt <= a.decodeRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return deepAnalysisPayload{}, false, err
		}
		content, err := a.completer.CompleteJSON(ctx, deepAnalysisSystemPrompt, userPrompt)
		if err != nil {
			return deepAnalysisPayload{}, false, fmt.Errorf("deep analysis for %s: %w", seg.SegmentID, err)
		}
		var payload deepAnalysisPayload
		if err := llm.DecodeLLMJSON(content, &payload); err != nil {
			lastErr = err
			a.logger.Warn("deep analysis payload undecodable, retrying",
				logging.String(logging.FieldSegment, seg.SegmentID),
				logging.Int("attempt", attempt+1),
				logging.Error(err))
			continue
		}
		if payload.Title == "" {
			payload.Title = fmt.Sprintf("片段%s", strings.TrimPrefix(seg.SegmentID, "SEG_"))
		}
		return payload, false, nil
	}

	a.logger.Warn("deep analysis degraded to default structure",
		logging.String(logging.FieldSegment, seg.SegmentID),
		logging.Error(lastErr))
	return defaultAnalysis(), true, nil
}

// defaultAnalysis is the deterministic structure used when the model never
// produces parsable output.
func defaultAnalysis() deepAnalysisPayload {
	var payload deepAnalysisPayload
	payload.Title = "未命名片段"
	return payload
}

// locateEntities pins each extracted entity to the atoms whose text
// actually contains it (or a known variant spelling).
func (a *Analyzer) locateEntities(payload deepAnalysisPayload, resolved []atoms.Atom) []knowledge.EntityFragment {
	grouped := []struct {
		entityType string
		names      []string
	}{
		{knowledge.TypePerson, payload.Entities.Persons},
		{knowledge.TypeCountry, payload.Entities.Countries},
		{knowledge.TypeOrganization, payload.Entities.Organizations},
		{knowledge.TypeTimePoint, payload.Entities.TimePoints},
		{knowledge.TypeEvent, payload.Entities.Events},
		{knowledge.TypeConcept, payload.Entities.Concepts},
	}

	var fragments []knowledge.EntityFragment
	for _, group := range grouped {
		for _, name := range compactStrings(group.names) {
			canonical := a.norm.Canonical(name)
			var atomIDs []string
			for _, atom := range resolved {
				if a.norm.Matches(atom.MergedText, canonical) {
					atomIDs = append(atomIDs, atom.AtomID)
				}
			}
			fragments = append(fragments, knowledge.EntityFragment{
				Name:    name,
				Type:    group.entityType,
				AtomIDs: atomIDs,
			})
		}
	}
	return fragments
}

func compactStrings(values []string) []string {
	var out []string
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
