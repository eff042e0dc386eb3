package indexer

import "strings"

// Chunk is a window of lines from one file.
type Chunk struct {
	Content   string
	StartLine int // 1-based, inclusive
	EndLine   int // inclusive
}

// ChunkLines splits content into windows of size lines that overlap by
// overlap lines. Windows that are only whitespace are dropped.
func ChunkLines(content string, size, overlap int) []Chunk {
	if size < 1 {
		size = 1
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	step := size - overlap

	var chunks []Chunk
	for i := 0; i < len(lines); i += step {
		end := min(i+size, len(lines))

		text := strings.Join(lines[i:end], "\n")
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, Chunk{
				Content:   text,
				StartLine: i + 1,
				EndLine:   end,
			})
		}

		if end >= len(lines) {
			break
		}
	}
	return chunks
}
