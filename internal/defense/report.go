package defense

import "strings"

// ParseBlocks gives the report markdown a coarse structure for renderers
// that do not want to re-parse markdown: headings open a block, the lines
// under a heading accumulate into one block whose type follows from the
// section the heading names.
func ParseBlocks(markdown string) []ReportBlock {
	var blocks []ReportBlock
	var buf []string
	current := BlockText

	flush := func() {
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		buf = buf[:0]
		if text != "" {
			blocks = append(blocks, ReportBlock{Type: current, Text: text})
		}
	}

	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if level := headingLevel(trimmed); level > 0 {
			flush()
			title := strings.TrimSpace(strings.TrimLeft(trimmed, "# "))
			blocks = append(blocks, ReportBlock{Type: BlockHeading, Level: level, Text: title})
			current = blockTypeFor(title)
			continue
		}
		buf = append(buf, line)
	}
	flush()
	return blocks
}

func headingLevel(line string) int {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	if n == 0 || n > 6 || n == len(line) || line[n] != ' ' {
		return 0
	}
	return n
}

func blockTypeFor(heading string) BlockType {
	h := strings.ToLower(heading)
	switch {
	case strings.Contains(h, "evidence"):
		return BlockEvidenceComparison
	case strings.Contains(h, "timeline"), strings.Contains(h, "next steps"):
		return BlockTimeline
	case strings.Contains(h, "recommendation"), strings.Contains(h, "defense strategy"):
		return BlockRecommendation
	default:
		return BlockText
	}
}
