package generation

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kbase/internal/llm"
)

// SystemPrompt is sent as the system message of every chat request.
const SystemPrompt = "You are a helpful AI assistant."

const userPromptTemplate = `You are a helpful AI assistant with access to a knowledge base. Use the following context to answer the user's question. If the context doesn't contain relevant information, say so and provide a helpful response based on your general knowledge.

Context:
{context}

Question: {question}

Answer:`

const fallbackTemplate = `I can see you asked: "{question}"

However, I need to be configured with a valid OpenAI API key to provide intelligent responses. 

The context I found from the knowledge base is:
{context}

To enable full AI functionality, please:
1. Get an OpenAI API key from https://platform.openai.com/api-keys
2. Update the OPENAI_API_KEY in the environment configuration
3. Restart the application

For now, I can only show you the relevant context from uploaded documents.`

const errorResponseFormat = "I apologize, but I encountered an error while generating a response: %v"

// fill substitutes both placeholders in one pass so a question containing
// "{context}" is not expanded.
func fill(tmpl, question, kbContext string) string {
	return strings.NewReplacer("{context}", kbContext, "{question}", question).Replace(tmpl)
}

// UserPrompt renders the user message for question over context.
func UserPrompt(question, kbContext string) string {
	return fill(userPromptTemplate, question, kbContext)
}

// Messages returns the chat transcript sent to the model.
func Messages(question, kbContext string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: SystemPrompt},
		{Role: llm.RoleUser, Content: UserPrompt(question, kbContext)},
	}
}

// FallbackResponse is the deterministic answer given when no model is configured.
func FallbackResponse(question, kbContext string) string {
	return fill(fallbackTemplate, question, kbContext)
}

// ErrorResponse is the apology returned in place of a failed blocking answer.
func ErrorResponse(err error) string {
	return fmt.Sprintf(errorResponseFormat, err)
}
