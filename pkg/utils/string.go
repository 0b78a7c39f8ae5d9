package utils

import (
	"strings"
	"unicode/utf8"
)

// Truncate shortens s to at most limit runes, ending with an ellipsis when cut.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit == 1 {
		return "…"
	}

	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}

// ChunkLines joins lines with newlines into chunks of at most limit runes.
// A single line longer than limit is truncated into its own chunk.
func ChunkLines(lines []string, limit int) []string {
	var (
		chunks []string
		buf    strings.Builder
		size   int
	)

	for _, line := range lines {
		line = Truncate(line, limit)
		n := utf8.RuneCountInString(line)

		if size > 0 && size+1+n > limit {
			chunks = append(chunks, buf.String())
			buf.Reset()
			size = 0
		}
		if size > 0 {
			buf.WriteByte('\n')
			size++
		}
		buf.WriteString(line)
		size += n
	}

	if size > 0 {
		chunks = append(chunks, buf.String())
	}
	return chunks
}
