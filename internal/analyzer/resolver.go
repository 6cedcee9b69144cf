package analyzer

import (
	"context"
	"fmt"

	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/retry"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/wikidata"
)

// resolveLabels turns entity IDs into display labels in the requested
// language, preserving input order. Cached labels are served locally; the
// rest are fetched in batches of up to wikidata.MaxBatchSize and cached
// before returning. Language is part of the cache key, so the same entity
// under two languages is stored twice.
func (s *Service) resolveLabels(ctx context.Context, qids []string, language string) ([]string, error) {
	if len(qids) == 0 {
		return nil, nil
	}

	resolved := make(map[string]string, len(qids))
	var missing []string
	for _, qid := range qids {
		if _, seen := resolved[qid]; seen {
			continue
		}
		if label, ok := s.labels.Get(qid, language); ok {
			resolved[qid] = label
		} else {
			resolved[qid] = ""
			missing = append(missing, qid)
		}
	}

	languages := []string{language}
	if s.defaultLanguage != language {
		languages = append(languages, s.defaultLanguage)
	}

	for start := 0; start < len(missing); start += wikidata.MaxBatchSize {
		end := start + wikidata.MaxBatchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		fetched, err := retry.Do(ctx, s.checkRetry, "resolve labels", func(ctx context.Context) (map[string]string, error) {
			return s.wikidata.Labels(ctx, batch, languages)
		})
		if err != nil {
			return nil, fmt.Errorf("resolving labels: %w", err)
		}

		for qid, label := range fetched {
			resolved[qid] = label
			s.labels.Set(qid, language, label)
		}
	}

	labels := make([]string, 0, len(qids))
	seen := make(map[string]bool, len(qids))
	for _, qid := range qids {
		if seen[qid] {
			continue
		}
		seen[qid] = true
		label := resolved[qid]
		if label == "" {
			// The remote omitted the entity entirely; fall back to the ID.
			label = qid
		}
		labels = append(labels, label)
	}
	return labels, nil
}
