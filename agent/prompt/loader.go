package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/summarize.txt
	summarizeRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Summarize string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// Safe to call concurrently; the embed is compile-time, trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Summarize: strings.TrimSpace(summarizeRaw),
	}
}
