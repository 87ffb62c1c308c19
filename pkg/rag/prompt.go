package rag

import (
	"fmt"
	"strconv"
	"strings"

	"rag-chatbot-be/pkg/vectorindex"
)

const unknownSource = "unknown"

// Citation points from a bracketed index in the answer back to the context
// block that carried it. The list mirrors the prompt, one entry per block.
type Citation struct {
	Index  int     `json:"index"`
	Source *string `json:"source"`
	Page   *int    `json:"page"`
	Score  float64 `json:"score"`
}

// GroundedBuilder renders ranked hits as numbered context blocks and wraps
// them in instructions that restrict the model to that context.
type GroundedBuilder struct {
	query string
	hits  []vectorindex.Hit
}

func NewGroundedBuilder(query string, hits []vectorindex.Hit) *GroundedBuilder {
	return &GroundedBuilder{query: query, hits: hits}
}

func (b *GroundedBuilder) Build() string {
	var prompt strings.Builder

	b.writeTask(&prompt)
	b.writeGuidelines(&prompt)
	b.writeContext(&prompt)
	b.writeUserQuery(&prompt)

	return prompt.String()
}

// Citations returns the structural citation list for the same blocks Build numbers.
func (b *GroundedBuilder) Citations() []Citation {
	citations := make([]Citation, 0, len(b.hits))
	for i, hit := range b.hits {
		c := Citation{Index: i + 1, Score: Score(hit.Distance)}
		if src, ok := hit.Metadata[vectorindex.MetaSource]; ok && src != "" {
			c.Source = &src
		}
		if page, ok := pageOf(hit.Metadata); ok {
			c.Page = &page
		}
		citations = append(citations, c)
	}
	return citations
}

// Header formats the label of the idx-th block, e.g. "[2] source=a.pdf, page=3".
func Header(idx int, metadata map[string]string) string {
	src := metadata[vectorindex.MetaSource]
	if src == "" {
		src = unknownSource
	}
	header := fmt.Sprintf("[%d] source=%s", idx, src)
	if page, ok := metadata[vectorindex.MetaPage]; ok && page != "" {
		header += ", page=" + page
	}
	return header
}

func (b *GroundedBuilder) writeTask(prompt *strings.Builder) {
	prompt.WriteString("<task>\n")
	prompt.WriteString("You are a careful, grounded assistant. Use ONLY the provided context blocks to answer.\n")
	prompt.WriteString("</task>\n\n")
}

func (b *GroundedBuilder) writeGuidelines(prompt *strings.Builder) {
	prompt.WriteString("<guidelines>\n")
	prompt.WriteString("- Cite sources inline like [1], [2] referencing the numbered blocks.\n")
	prompt.WriteString("- If the answer isn't supported by the context, say you don't know.\n")
	prompt.WriteString("- Prefer concise, direct answers.\n")
	prompt.WriteString("</guidelines>\n\n")
}

func (b *GroundedBuilder) writeContext(prompt *strings.Builder) {
	prompt.WriteString("<context>\n")
	prompt.WriteString("Context blocks (numbered):\n")
	blocks := make([]string, 0, len(b.hits))
	for i, hit := range b.hits {
		blocks = append(blocks, Header(i+1, hit.Metadata)+"\n"+hit.Content)
	}
	prompt.WriteString(strings.Join(blocks, "\n\n"))
	prompt.WriteString("\n</context>\n\n")
}

func (b *GroundedBuilder) writeUserQuery(prompt *strings.Builder) {
	prompt.WriteString("<user_question>\n")
	prompt.WriteString(b.query)
	prompt.WriteString("\n</user_question>\n\n")
	prompt.WriteString("Answer (with citations):")
}

func pageOf(metadata map[string]string) (int, bool) {
	raw, ok := metadata[vectorindex.MetaPage]
	if !ok {
		return 0, false
	}
	page, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return page, true
}
