package service

import (
	"fmt"
	"strings"

	"reportchat/internal/history"
	"reportchat/internal/llm"
	"reportchat/internal/rag"
	"reportchat/internal/websearch"
)

const documentSystemPrompt = `You are an assistant answering questions about a company report.
Answer only from the document excerpts given with the question.
If the excerpts do not contain the answer, say that the document does not cover it.
Quote figures exactly as they appear in the excerpts.`

const webSystemPrompt = `You are an assistant answering questions from web search results.
Answer only from the results given with the question and mention the links you relied on.
If the results do not contain the answer, say so.`

// buildDocumentMessages lays out the system prompt, earlier turns as alternating
// user and assistant messages, then the excerpts and the question.
func buildDocumentMessages(question string, chunks []rag.Chunk, turns []history.Turn) []llm.Message {
	messages := make([]llm.Message, 0, 2+2*len(turns))
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: documentSystemPrompt})

	for _, turn := range turns {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: turn.Question},
			llm.Message{Role: llm.RoleAssistant, Content: turn.Answer},
		)
	}

	var sb strings.Builder
	sb.WriteString("Document excerpts:\n\n")
	for i, chunk := range chunks {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		sb.WriteString(chunk.Content)
	}
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)

	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: sb.String()})
	return messages
}

// buildWebMessages lays out search results in the order the search API returned them.
func buildWebMessages(question string, results []websearch.Result) []llm.Message {
	var sb strings.Builder
	sb.WriteString("Web search results:\n\n")
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Title: %s\nLink: %s\nSnippet: %s", r.Title, r.Link, r.Snippet)
	}
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: webSystemPrompt},
		{Role: llm.RoleUser, Content: sb.String()},
	}
}
