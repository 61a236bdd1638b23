package parser

import (
	"regexp"
	"strings"
)

// A forwarded digest may concatenate several deposit notifications. Blocks
// start where the header marker opens a line: the money-bag icon followed
// by the fixed phrase, case-insensitive.
var reBlockHeader = regexp.MustCompile(`(?im)^\s*💰\s*novo\s+dep[óo]sito`)

// splitBlocks segments text into one chunk per header occurrence, in
// document order. Text before the first header is not a chunk. An empty
// result means "no markers present" and the caller falls back to
// whole-text extraction.
func splitBlocks(text string) []string {
	locs := reBlockHeader.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	chunks := make([]string, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		chunk := strings.TrimSpace(text[loc[0]:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}
