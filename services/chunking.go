package services

import (
	"regexp"
	"strings"

	"course-assistant-platform/models"
)

// ChunkingService splits raw course text into overlap-preserving semantic
// units, separating fenced code from prose. Given identical input and config
// the produced boundaries and order are reproducible.
type ChunkingService struct {
	maxChunkSize  int
	codeChunkSize int
	overlapWords  int
	minChunkSize  int
	codeFenceRe   *regexp.Regexp
	headingRe     *regexp.Regexp
	paragraphRe   *regexp.Regexp
}

// NewChunkingService creates a chunker. maxChunkSize and codeChunkSize are
// character budgets (proxying token count); overlapWords is the word-count
// overlap carried between consecutive prose chunks.
func NewChunkingService(maxChunkSize, codeChunkSize, overlapWords, minChunkSize int) *ChunkingService {
	return &ChunkingService{
		maxChunkSize:  maxChunkSize,
		codeChunkSize: codeChunkSize,
		overlapWords:  overlapWords,
		minChunkSize:  minChunkSize,
		codeFenceRe:   regexp.MustCompile("(?s)```([a-zA-Z0-9+#-]*)\n?(.*?)```"),
		headingRe:     regexp.MustCompile(`(?m)^#{1,6}\s`),
		paragraphRe:   regexp.MustCompile(`\n\n+`),
	}
}

// ChunkText produces the ordered chunk list for one document. Empty or
// whitespace-only input yields an empty list, not an error.
func (cs *ChunkingService) ChunkText(text string) []models.Chunk {
	if strings.TrimSpace(text) == "" {
		return []models.Chunk{}
	}

	var chunks []models.Chunk
	sectionIndex := 0

	// Code blocks come out first so they are never split at sentence
	// boundaries. The remaining prose keeps its original order.
	prose := cs.codeFenceRe.ReplaceAllStringFunc(text, func(match string) string {
		sub := cs.codeFenceRe.FindStringSubmatch(match)
		language, code := sub[1], sub[2]
		for _, piece := range cs.splitCode(code) {
			chunks = append(chunks, models.Chunk{
				Text:               piece,
				Type:               models.ChunkCode,
				Language:           strings.ToLower(language),
				SourceSectionIndex: sectionIndex,
			})
		}
		sectionIndex++
		return "\n\n"
	})

	for _, section := range cs.splitSections(prose) {
		for _, piece := range cs.packSection(section) {
			chunks = append(chunks, models.Chunk{
				Text:               piece,
				Type:               models.ChunkProse,
				SourceSectionIndex: sectionIndex,
			})
		}
		sectionIndex++
	}

	return cs.mergeSmall(chunks)
}

// splitCode cuts a code block into pieces at word boundaries only, keeping
// snippets as runnable as the budget allows.
func (cs *ChunkingService) splitCode(code string) []string {
	code = strings.Trim(code, "\n")
	if strings.TrimSpace(code) == "" {
		return nil
	}
	if len(code) <= cs.codeChunkSize {
		return []string{code}
	}

	var pieces []string
	words := strings.Fields(code)
	current := new(strings.Builder)
	for _, word := range words {
		if current.Len() > 0 && current.Len()+len(word)+1 > cs.codeChunkSize {
			pieces = append(pieces, current.String())
			current = new(strings.Builder)
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}

// splitSections splits prose by heading boundaries, falling back to blank-line
// paragraphs when the document has no headings.
func (cs *ChunkingService) splitSections(text string) []string {
	locs := cs.headingRe.FindAllStringIndex(text, -1)
	var sections []string
	if len(locs) > 1 || (len(locs) == 1 && locs[0][0] > 0) {
		prev := 0
		for _, loc := range locs {
			if loc[0] > prev {
				sections = append(sections, text[prev:loc[0]])
			}
			prev = loc[0]
		}
		sections = append(sections, text[prev:])
	} else {
		// No headings to split on: the whole document is one section, so
		// packing and inter-chunk overlap still apply across paragraphs.
		sections = []string{text}
	}
	return filterEmpty(sections)
}

// packSection packs one section's paragraphs into chunks near the size
// budget, prepending the configured word overlap from the previous chunk.
func (cs *ChunkingService) packSection(section string) []string {
	paragraphs := filterEmpty(cs.paragraphRe.Split(section, -1))
	if len(paragraphs) == 0 {
		return nil
	}

	var pieces []string
	current := new(strings.Builder)

	flush := func() {
		if current.Len() == 0 {
			return
		}
		pieces = append(pieces, current.String())
		current = new(strings.Builder)
		if cs.overlapWords > 0 {
			overlap := lastWords(pieces[len(pieces)-1], cs.overlapWords)
			if overlap != "" {
				current.WriteString(overlap)
			}
		}
	}

	for _, paragraph := range paragraphs {
		if current.Len() > 0 && current.Len()+len(paragraph)+2 > cs.maxChunkSize {
			flush()
		}
		// A single paragraph above the budget still becomes one chunk;
		// prose is never cut mid-paragraph.
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(paragraph)
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}

// mergeSmall folds undersized chunks into their predecessor of the same type
// and drops whatever cannot be merged. Never emits a zero-length chunk.
func (cs *ChunkingService) mergeSmall(chunks []models.Chunk) []models.Chunk {
	result := make([]models.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Text) == "" {
			continue
		}
		if len(chunk.Text) < cs.minChunkSize {
			if n := len(result); n > 0 && result[n-1].Type == chunk.Type {
				result[n-1].Text += "\n\n" + chunk.Text
				continue
			}
			// Nothing to merge into; an isolated fragment this small
			// carries no retrieval value.
			continue
		}
		result = append(result, chunk)
	}
	return result
}

// lastWords returns the trailing n words of text.
func lastWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return text
	}
	return strings.Join(words[len(words)-n:], " ")
}

// filterEmpty removes empty strings from slice
func filterEmpty(slice []string) []string {
	result := make([]string, 0, len(slice))
	for _, s := range slice {
		if len(strings.TrimSpace(s)) > 0 {
			result = append(result, strings.TrimSpace(s))
		}
	}
	return result
}

// ExtractKeywords extracts the most frequent non-stopword terms of a chunk;
// stored as filterable metadata alongside the vector.
func ExtractKeywords(text string, limit int) []string {
	words := strings.Fields(strings.ToLower(text))

	stopWords := map[string]bool{
		"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
		"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
		"with": true, "is": true, "are": true, "was": true, "were": true,
	}

	wordFreq := make(map[string]int)
	var order []string
	for _, word := range words {
		word = strings.Trim(word, ".,;:!?()[]{}\"")
		if len(word) > 2 && !stopWords[word] {
			if wordFreq[word] == 0 {
				order = append(order, word)
			}
			wordFreq[word]++
		}
	}

	keywords := make([]string, 0, limit)
	for _, word := range order {
		if wordFreq[word] >= 2 && len(keywords) < limit {
			keywords = append(keywords, word)
		}
	}
	return keywords
}
