package services

import (
	"fmt"
	"strings"
)

// abstractSystemPrompt instructs the model to produce a whole-document
// description from the document's front matter.
func abstractSystemPrompt(title string) string {
	return "You are an AI document summarizer. " +
		"You will be given a short PDF. " +
		fmt.Sprintf("This PDF contains the first few pages of a document titled %q. ", title) +
		"Give a concise one-paragraph description of the overall topic and contents of the document."
}

// figureSystemPrompt instructs the vision model to produce a
// keyword-rich description suitable for discovery queries.
const figureSystemPrompt = `Please give a detailed description of this figure. This description will be
included in a database, and used in queries to discover the image, so you
should include as many keywords and important features of the image as you can.

Include

1. Content type (photo, chart, flowchart, blueprint, wiring diagram, etc.)
2. Technical domain (engineering, software, medical, etc.)
3. Key components, processes, or other elements shown
4. Any technical terms, labels, or specifications visible
5. Relevant technical keywords
6. Any readable text content

Be factual and specific. Do not ask follow up questions, only generate the description.`

// gistSystemPrompt instructs the model to produce a short rolling
// summary of one page, given the document description and the gists of
// the preceding pages as context.
func gistSystemPrompt(title, description string, pageNumber int, priorGists []string) string {
	var b strings.Builder
	b.WriteString("You are an AI document summarizer. ")
	fmt.Fprintf(&b, "You will be given page %d of a document titled %q as a single-page PDF. ", pageNumber, title)
	b.WriteString("Give a concise two-or-three-sentence gist of the page's contents.")

	if description != "" {
		b.WriteString("\n\nThe document as a whole is described as follows:\n")
		b.WriteString(description)
	}

	if len(priorGists) > 0 {
		b.WriteString("\n\nFor context, the gists of the preceding pages were:\n")
		for _, gist := range priorGists {
			b.WriteString("- ")
			b.WriteString(gist)
			b.WriteByte('\n')
		}
	}

	return b.String()
}
