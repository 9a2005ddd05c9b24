package queue

import "github.com/hparsa/relaycast/internal/core/domain"

// Platform-legal batch caps. A media group may carry at most ten entries,
// and one post never spends more than three groups; anything beyond the
// combined cap is dropped, not deferred to a later post.
const (
	DefaultMaxChunks   = 3
	DefaultMaxPerChunk = 10
)

// Chunk splits an ordered media list into order-preserving batches of at
// most maxPerChunk items, keeping at most maxChunks batches. An empty list
// yields zero chunks (the text-only delivery path).
func Chunk(media []domain.MediaItem, maxChunks, maxPerChunk int) [][]domain.MediaItem {
	if len(media) == 0 || maxChunks <= 0 || maxPerChunk <= 0 {
		return nil
	}

	if limit := maxChunks * maxPerChunk; len(media) > limit {
		media = media[:limit]
	}

	chunks := make([][]domain.MediaItem, 0, (len(media)+maxPerChunk-1)/maxPerChunk)

	for start := 0; start < len(media); start += maxPerChunk {
		end := start + maxPerChunk
		if end > len(media) {
			end = len(media)
		}

		chunks = append(chunks, media[start:end])
	}

	return chunks
}
