package speakerdb

import (
	"context"
	"sort"
)

// Match is the best stored speaker for an embedding.
type Match struct {
	Name       string
	Similarity float64
}

// Match returns the stored speaker most similar to embedding. ok is false
// when no speaker reaches threshold.
func (s *Store) Match(ctx context.Context, embedding []float64, threshold float64) (Match, bool, error) {
	speakers, err := s.List(ctx)
	if err != nil {
		return Match{}, false, err
	}
	best := bestMatch(speakers, embedding)
	return best, best.Name != "" && best.Similarity >= threshold, nil
}

// Identify maps diarization labels to stored names. Each name is assigned to
// at most one label: when two labels match the same person, the more similar
// one keeps the name and the other stays anonymous.
func (s *Store) Identify(ctx context.Context, embeddings map[string][]float64, threshold float64) (map[string]Match, error) {
	names := map[string]Match{}
	if len(embeddings) == 0 {
		return names, nil
	}
	speakers, err := s.List(ctx)
	if err != nil || len(speakers) == 0 {
		return names, err
	}

	labels := make([]string, 0, len(embeddings))
	for label := range embeddings {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	owner := map[string]string{}
	for _, label := range labels {
		m := bestMatch(speakers, embeddings[label])
		if m.Name == "" || m.Similarity < threshold {
			continue
		}
		if prev, taken := owner[m.Name]; taken {
			if names[prev].Similarity >= m.Similarity {
				continue
			}
			delete(names, prev)
		}
		owner[m.Name] = label
		names[label] = m
	}
	return names, nil
}

func bestMatch(speakers []Speaker, embedding []float64) Match {
	var best Match
	for _, sp := range speakers {
		sim := Cosine(embedding, sp.Embedding)
		if sim > best.Similarity {
			best = Match{Name: sp.Name, Similarity: sim}
		}
	}
	return best
}
