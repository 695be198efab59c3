package pipeline

import (
	"context"

	"github.com/rs/zerolog/log"
)

// findPublishedPart checks every part's exact text against the published
// history and returns the index of the first match. Any single match skips
// the entire post: partially re-posting a thread would leave duplicate
// fragments with mismatched reply chains.
func (p *Pipeline) findPublishedPart(ctx context.Context, parts []string) (int, bool, error) {
	for i, part := range parts {
		exists, err := p.queue.ExistsPublishedText(ctx, part)
		if err != nil {
			return 0, false, err
		}
		if exists {
			log.Info().
				Int("part", i+1).
				Str("text", excerpt(part)).
				Msg("Part already published — skipping whole post")
			return i, true, nil
		}
	}
	return 0, false, nil
}

// excerpt shortens part text for log lines.
func excerpt(s string) string {
	const n = 30
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
