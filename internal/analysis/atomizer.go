package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"loom/internal/atoms"
	"loom/internal/logging"
	"loom/internal/services/llm"
	"loom/internal/subtitles"
)

const defaultAtomizeBatch = 50

// Atomizer converts cleaned utterances into semantic atoms by batching them
// through the LLM. Atom identity is assigned positionally by the caller
// after the full list is assembled.
type Atomizer struct {
	completer ChatCompleter
	logger    *slog.Logger
	batchSize int
}

// NewAtomizer constructs an Atomizer.
func NewAtomizer(completer ChatCompleter, logger *slog.Logger, batchSize int) *Atomizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	if batchSize <= 0 {
		batchSize = defaultAtomizeBatch
	}
	return &Atomizer{completer: completer, logger: logger, batchSize: batchSize}
}

// atomizePayload is the JSON shape the atomization prompt requests.
type atomizePayload struct {
	Atoms []struct {
		UtteranceIDs []int  `json:"utterance_ids"`
		Type         string `json:"type"`
		Completeness string `json:"completeness"`
	} `json:"atoms"`
}

// Atomize groups utterances into atoms. Each atom's text and timing are
// derived from its source utterances, never trusted from the model, so a
// hallucinated grouping can misjoin text but cannot invent it.
func (a *Atomizer) Atomize(ctx context.Context, utterances []subtitles.Utterance) ([]atoms.Atom, error) {
	byID := make(map[int]subtitles.Utterance, len(utterances))
	for _, utt := range utterances {
		byID[utt.ID] = utt
	}

	var result []atoms.Atom
	for start := 0; start < len(utterances); start += a.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + a.batchSize
		if end > len(utterances) {
			end = len(utterances)
		}
		batch := utterances[start:end]

		content, err := a.completer.CompleteJSON(ctx, atomizeSystemPrompt, buildAtomizePrompt(batch))
		if err != nil {
			return nil, fmt.Errorf("atomize utterances %d-%d: %w", batch[0].ID, batch[len(batch)-1].ID, err)
		}
		var payload atomizePayload
		if err := llm.DecodeLLMJSON(content, &payload); err != nil {
			return nil, fmt.Errorf("atomize utterances %d-%d: decode: %w", batch[0].ID, batch[len(batch)-1].ID, err)
		}

		covered := make(map[int]bool, len(batch))
		for _, group := range payload.Atoms {
			atom, ok := a.buildAtom(group.UtteranceIDs, group.Type, group.Completeness, byID)
			if !ok {
				continue
			}
			for _, id := range group.UtteranceIDs {
				covered[id] = true
			}
			result = append(result, atom)
		}
		// Utterances the model skipped become single-utterance atoms so no
		// transcript text is ever dropped.
		for _, utt := range batch {
			if covered[utt.ID] {
				continue
			}
			a.logger.Debug("utterance not grouped by model, kept as single atom",
				logging.Int("utterance_id", utt.ID))
			atom, ok := a.buildAtom([]int{utt.ID}, "fragment", "完整", byID)
			if ok {
				result = append(result, atom)
			}
		}
	}

	return atoms.AssignUniqueIDs(result), nil
}

func (a *Atomizer) buildAtom(utteranceIDs []int, atomType, completeness string, byID map[int]subtitles.Utterance) (atoms.Atom, bool) {
	var (
		sources  []int
		text     string
		startMS  int64 = -1
		endMS    int64
		anyFound bool
	)
	for _, id := range utteranceIDs {
		utt, ok := byID[id]
		if !ok {
			a.logger.Warn("atom group references unknown utterance",
				logging.Int("utterance_id", id))
			continue
		}
		anyFound = true
		sources = append(sources, id)
		if text != "" {
			text += " "
		}
		text += utt.Text
		if startMS < 0 || utt.StartMS < startMS {
			startMS = utt.StartMS
		}
		if utt.EndMS > endMS {
			endMS = utt.EndMS
		}
	}
	if !anyFound || text == "" || endMS <= startMS {
		return atoms.Atom{}, false
	}
	if atomType == "" {
		atomType = "fragment"
	}
	return atoms.Atom{
		StartMS:            startMS,
		EndMS:              endMS,
		DurationMS:         endMS - startMS,
		MergedText:         text,
		Type:               atomType,
		Completeness:       completeness,
		SourceUtteranceIDs: sources,
	}, true
}
