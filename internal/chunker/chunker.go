package chunker

import "strings"

const (
	// MaxChunkSize is the target maximum chunk length in bytes.
	MaxChunkSize = 4000

	// MinChunkSize drops fragments too small to be worth indexing on
	// their own; they are merged into the preceding chunk instead.
	MinChunkSize = 40
)

// Chunk is one indexable section of a document.
type Chunk struct {
	Index        int
	SectionTitle string
	Content      string
}

// Chunker splits documents into sections.
type Chunker struct {
	maxSize int
}

// New creates a Chunker with the default size cap.
func New() *Chunker {
	return &Chunker{maxSize: MaxChunkSize}
}

// NewWithMaxSize creates a Chunker with a custom size cap. Non-positive
// values fall back to the default.
func NewWithMaxSize(maxSize int) *Chunker {
	if maxSize <= 0 {
		maxSize = MaxChunkSize
	}
	return &Chunker{maxSize: maxSize}
}

// Split divides a document into chunks. A document with no headings and
// within the size cap yields a single chunk with an empty section title.
// Empty or whitespace-only content yields no chunks.
func (c *Chunker) Split(content string) []Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	sections := splitSections(content)

	chunks := make([]Chunk, 0, len(sections))
	for _, sec := range sections {
		for _, part := range c.splitOversized(sec.body) {
			if strings.TrimSpace(part) == "" {
				continue
			}
			if len(part) < MinChunkSize && len(chunks) > 0 {
				chunks[len(chunks)-1].Content += "\n" + part
				continue
			}
			chunks = append(chunks, Chunk{
				Index:        len(chunks),
				SectionTitle: sec.title,
				Content:      part,
			})
		}
	}
	return chunks
}

type section struct {
	title string
	body  string
}

// splitSections breaks content at markdown headings. Text before the first
// heading becomes an untitled leading section.
func splitSections(content string) []section {
	lines := strings.Split(content, "\n")

	var sections []section
	current := section{}
	var buf []string

	flush := func() {
		body := strings.TrimRight(strings.Join(buf, "\n"), "\n")
		if strings.TrimSpace(body) != "" {
			current.body = body
			sections = append(sections, current)
		}
		buf = buf[:0]
	}

	for _, line := range lines {
		if title, ok := headingTitle(line); ok {
			flush()
			current = section{title: title}
		}
		buf = append(buf, line)
	}
	flush()

	return sections
}

// headingTitle reports whether a line is a markdown ATX heading and returns
// its text.
func headingTitle(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, " ")
	if !strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level > 6 {
		return "", false
	}
	rest := trimmed[level:]
	if rest != "" && !strings.HasPrefix(rest, " ") {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// splitOversized breaks a section body at blank-line boundaries until each
// piece fits the size cap. A single paragraph larger than the cap is kept
// whole rather than cut mid-sentence.
func (c *Chunker) splitOversized(body string) []string {
	if len(body) <= c.maxSize {
		return []string{body}
	}

	paragraphs := strings.Split(body, "\n\n")
	var parts []string
	var buf strings.Builder

	for _, para := range paragraphs {
		if buf.Len() > 0 && buf.Len()+len(para)+2 > c.maxSize {
			parts = append(parts, buf.String())
			buf.Reset()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(para)
	}
	if buf.Len() > 0 {
		parts = append(parts, buf.String())
	}
	return parts
}
