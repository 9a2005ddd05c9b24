package queue

import (
	"fmt"
	"testing"

	"github.com/hparsa/relaycast/internal/core/domain"
)

func photos(n int) []domain.MediaItem {
	media := make([]domain.MediaItem, n)
	for i := range media {
		media[i] = domain.MediaItem{URL: fmt.Sprintf("https://example.com/%d.jpg", i), Kind: domain.MediaPhoto}
	}

	return media
}

func TestChunkSizes(t *testing.T) {
	tests := []struct {
		name      string
		items     int
		wantSizes []int
	}{
		{name: "empty", items: 0, wantSizes: nil},
		{name: "single", items: 1, wantSizes: []int{1}},
		{name: "exactly one chunk", items: 10, wantSizes: []int{10}},
		{name: "one over", items: 11, wantSizes: []int{10, 1}},
		{name: "twenty five", items: 25, wantSizes: []int{10, 10, 5}},
		{name: "exactly at cap", items: 30, wantSizes: []int{10, 10, 10}},
		{name: "over cap truncates", items: 31, wantSizes: []int{10, 10, 10}},
		{name: "far over cap", items: 100, wantSizes: []int{10, 10, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Chunk(photos(tt.items), DefaultMaxChunks, DefaultMaxPerChunk)

			if len(chunks) != len(tt.wantSizes) {
				t.Fatalf("expected %d chunks, got %d", len(tt.wantSizes), len(chunks))
			}

			for i, want := range tt.wantSizes {
				if len(chunks[i]) != want {
					t.Fatalf("chunk %d: expected %d items, got %d", i, want, len(chunks[i]))
				}
			}
		})
	}
}

func TestChunkPreservesOrder(t *testing.T) {
	media := photos(25)
	chunks := Chunk(media, DefaultMaxChunks, DefaultMaxPerChunk)

	i := 0

	for _, chunk := range chunks {
		for _, m := range chunk {
			if m.URL != media[i].URL {
				t.Fatalf("position %d: expected %s, got %s", i, media[i].URL, m.URL)
			}
			i++
		}
	}
}

func TestChunkIdempotent(t *testing.T) {
	media := photos(17)

	first := Chunk(media, DefaultMaxChunks, DefaultMaxPerChunk)
	second := Chunk(media, DefaultMaxChunks, DefaultMaxPerChunk)

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}

	for i := range first {
		if len(first[i]) != len(second[i]) {
			t.Fatalf("chunk %d sizes differ", i)
		}

		for j := range first[i] {
			if first[i][j] != second[i][j] {
				t.Fatalf("chunk %d item %d differs", i, j)
			}
		}
	}
}

func TestChunkDegenerateLimits(t *testing.T) {
	if got := Chunk(photos(5), 0, 10); got != nil {
		t.Fatalf("expected nil for zero maxChunks, got %v", got)
	}

	if got := Chunk(photos(5), 3, 0); got != nil {
		t.Fatalf("expected nil for zero maxPerChunk, got %v", got)
	}
}
