package usecase

import (
	"fmt"
	"strings"
)

const rewriteSnippetLimit = 3

func buildRewritePrompt(question string) string {
	return fmt.Sprintf(`Generate %d different ways to ask the same question. Make them more specific and detailed.

Original question: %s

Provide %d alternative questions (one per line):
1.
2.
3.`, rewriteSnippetLimit, question, rewriteSnippetLimit)
}

func buildScorePrompt(question, content string) string {
	const maxSnippet = 500
	content = cutRunes(content, maxSnippet)
	return fmt.Sprintf(`Rate how relevant this document is to the question on a scale of 1-10.

Question: %s

Document: %s...

Provide only a number from 1-10 (10 = highly relevant, 1 = not relevant):`, question, content)
}

func buildAnswerPrompt(question, context, analysisSummary string) string {
	var b strings.Builder
	b.WriteString(`You are an expert AI assistant with advanced document analysis capabilities. You have access to multiple sources of information retrieved through hybrid search.

Retrieved Context (from multiple search methods):
`)
	b.WriteString(context)
	b.WriteString("\n\nOriginal Question: ")
	b.WriteString(question)
	b.WriteString("\n\nQuery Analysis: ")
	b.WriteString(analysisSummary)
	b.WriteString(`

Instructions:
- Synthesize information from ALL provided documents
- Cross-reference information between sources when possible
- Indicate confidence level in your answer (High/Medium/Low)
- If information conflicts between sources, mention this
- Cite specific sources when making claims
- If context is insufficient, clearly explain what's missing
- Provide a comprehensive, well-structured answer

Response Format:
Confidence: [High/Medium/Low]
Answer: [Your detailed response]
Sources: [List relevant source documents]

Response:`)
	return b.String()
}
