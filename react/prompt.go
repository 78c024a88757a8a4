package react

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"
)

// GrammarVersion identifies the wording of the system prompt and the output
// grammar it teaches. Transcripts recorded against one version are not
// comparable with another; bump it on any wording change.
const GrammarVersion = "1"

// StopSequence is sent as a stop sequence so the model halts after an
// Action and waits for the Observation.
const StopSequence = "PAUSE"

//go:embed system_prompt.tmpl
var systemPromptContent string

var systemPromptTemplate = template.Must(
	template.New("react_system").Parse(systemPromptContent),
)

// PromptData is passed to the system prompt template.
type PromptData struct {
	Instructions string
	Tools        string
}

// SystemPrompt renders the system prompt for instructions and a newline
// separated list of "name - description" tool lines. An empty tool list
// leaves the Action grammar out.
func SystemPrompt(instructions, tools string) string {
	var buf bytes.Buffer
	data := PromptData{
		Instructions: strings.TrimSpace(instructions),
		Tools:        strings.TrimSpace(tools),
	}
	// The template is static and the data is plain strings.
	if err := systemPromptTemplate.Execute(&buf, data); err != nil {
		panic(err)
	}
	return buf.String()
}

// ToolLine formats one entry of the tool list.
func ToolLine(name, description string) string {
	return name + " - " + description
}
