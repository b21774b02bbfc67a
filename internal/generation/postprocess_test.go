package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestPostProcessor() *PostProcessor {
	return NewPostProcessor(3, []string{
		"I don't have that information",
		"bu bilgi bilgi taban",
	})
}

func TestCleanStripsPromptEcho(t *testing.T) {
	p := newTestPostProcessor()

	raw := "Question: What is the GPA requirement?\nAnswer: The minimum GPA is 3.0."
	assert.Equal(t, "The minimum GPA is 3.0.", p.Clean(raw))
}

func TestCleanKeepsTextAfterLastAnswerMarker(t *testing.T) {
	p := newTestPostProcessor()

	raw := "Answer: draft. Question: again? Answer: The deadline is June 30."
	assert.Equal(t, "The deadline is June 30.", p.Clean(raw))
}

func TestCleanStripsTurkishPromptEcho(t *testing.T) {
	p := newTestPostProcessor()

	raw := "Soru: Yurt başvurusu ne zaman?\nYanıt: Ağustos ayında açılır."
	assert.Equal(t, "Ağustos ayında açılır.", p.Clean(raw))
}

func TestIsNoAnswerDetectsTurkishRefusalAfterEcho(t *testing.T) {
	p := newTestPostProcessor()

	raw := "Soru: Otopark ücreti nedir?\nYanıt: Üzgünüm, bu bilgi bilgi tabanımda bulunmuyor."
	assert.True(t, p.IsNoAnswer(p.Clean(raw)))
}

func TestCleanStripsWrappingQuotes(t *testing.T) {
	p := newTestPostProcessor()

	tests := []struct {
		in   string
		want string
	}{
		{`"The library is open until midnight."`, "The library is open until midnight."},
		{"“Kütüphane gece yarısına kadar açıktır.”", "Kütüphane gece yarısına kadar açıktır."},
		{"No quotes here.", "No quotes here."},
		{`"Only an opening quote`, `"Only an opening quote`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Clean(tt.in))
	}
}

func TestCleanCapsSentences(t *testing.T) {
	p := newTestPostProcessor()

	raw := "First fact. Second fact. Third fact. Fourth fact. Fifth fact."
	got := p.Clean(raw)

	assert.Contains(t, got, "First fact.")
	assert.Contains(t, got, "Third fact.")
	assert.NotContains(t, got, "Fourth fact.")
}

func TestCleanPassesShortAnswersThrough(t *testing.T) {
	p := newTestPostProcessor()

	raw := "Applications open in March. Results arrive in May."
	assert.Equal(t, raw, p.Clean(raw))
}

func TestIsNoAnswer(t *testing.T) {
	p := newTestPostProcessor()

	tests := []struct {
		name   string
		answer string
		want   bool
	}{
		{"empty", "", true},
		{"whitespace", "  \n", true},
		{"english refusal", "I'm sorry, I don't have that information in my knowledge base.", true},
		{"turkish refusal", "Üzgünüm, bu bilgi bilgi tabanımda bulunmuyor.", true},
		{"case insensitive", "I DON'T HAVE THAT INFORMATION about dorms.", true},
		{"real answer", "The minimum GPA is 3.0.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsNoAnswer(tt.answer))
		})
	}
}
