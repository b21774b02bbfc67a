// Package prompt assembles the grounding prompt handed to the generator.
package prompt

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agu-rag/backend/internal/knowledge"
	"github.com/agu-rag/backend/internal/language"
	"github.com/agu-rag/backend/pkg/logger"
)

const instructionEN = `You are an assistant for Abdullah Gül University (AGU).
You answer questions ONLY using the information in the context below.

RULES:
1. Use ONLY the information inside <context> ... </context>.
2. Do NOT invent new facts.
3. Answer in clear English.
4. Answer the question DIRECTLY and CONCISELY in 1-3 sentences.
5. Do NOT give advice unless the question explicitly asks for advice.
6. Do NOT talk about the context or about being an AI.
7. If the context does not contain the answer, say: "%s"`

const instructionTR = `Sen Abdullah Gül Üniversitesi (AGÜ) için bir asistansın.
Soruları YALNIZCA aşağıdaki bağlamdaki bilgileri kullanarak yanıtlarsın.

KURALLAR:
1. YALNIZCA <context> ... </context> içindeki bilgileri kullan.
2. Yeni bilgi UYDURMA.
3. Açık ve anlaşılır Türkçe ile yanıt ver.
4. Soruyu 1-3 cümleyle DOĞRUDAN ve KISACA yanıtla.
5. Soru açıkça tavsiye istemiyorsa tavsiye verme.
6. Bağlamdan veya yapay zeka olmaktan bahsetme.
7. Bağlam yanıtı içermiyorsa şunu söyle: "%s"`

// NoAnswerMessage is the phrase the generator is told to emit when the
// context cannot answer the question, and the phrase returned to callers
// when no grounded answer exists.
func NoAnswerMessage(lang language.Tag) string {
	if lang == language.Turkish {
		return "Üzgünüm, bu bilgi bilgi tabanımda bulunmuyor."
	}
	return "I'm sorry, I don't have that information in my knowledge base."
}

// Builder renders the deterministic grounding template. When the reconciled
// context does not fit the generator's input capacity, whole chunks are
// dropped lowest-similarity first; the instruction and the query are never
// cut.
type Builder struct {
	maxChars int
}

func NewBuilder(maxChars int) *Builder {
	if maxChars <= 0 {
		maxChars = 6000
	}
	return &Builder{maxChars: maxChars}
}

// Build returns the prompt and the chunks that actually made it in, in
// their incoming order (descending similarity). The returned slice is the
// definitive final context: only these chunks are eligible citations.
func (b *Builder) Build(query string, lang language.Tag, chunks []knowledge.ContextChunk) (string, []knowledge.ContextChunk) {
	instruction := b.instruction(lang)
	skeleton := b.render(instruction, query, lang, nil)
	budget := b.maxChars - len(skeleton)

	kept := make([]knowledge.ContextChunk, 0, len(chunks))
	used := 0
	for _, chunk := range chunks {
		// +8 covers the reference marker and separators around the chunk.
		cost := len(chunk.Text) + 8
		if used+cost > budget {
			break
		}
		kept = append(kept, chunk)
		used += cost
	}

	if len(kept) < len(chunks) {
		logger.Warn("Context truncated to fit generator capacity",
			zap.Int("offered", len(chunks)),
			zap.Int("kept", len(kept)),
			zap.Int("max_chars", b.maxChars),
		)
	}

	return b.render(instruction, query, lang, kept), kept
}

func (b *Builder) instruction(lang language.Tag) string {
	if lang == language.Turkish {
		return fmt.Sprintf(instructionTR, NoAnswerMessage(language.Turkish))
	}
	return fmt.Sprintf(instructionEN, NoAnswerMessage(language.English))
}

func (b *Builder) render(instruction, query string, lang language.Tag, chunks []knowledge.ContextChunk) string {
	var sb strings.Builder
	sb.WriteString(instruction)
	sb.WriteString("\n\n<context>\n")
	for i, chunk := range chunks {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, chunk.Text)
	}
	sb.WriteString("</context>\n\n")
	if lang == language.Turkish {
		fmt.Fprintf(&sb, "Soru: %s\nYanıt:", query)
	} else {
		fmt.Fprintf(&sb, "Question: %s\nAnswer:", query)
	}
	return sb.String()
}
