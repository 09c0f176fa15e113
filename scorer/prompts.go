package scorer

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed prompts/*.txt
var promptFS embed.FS

var judgmentPromptText string
var judgmentPromptError error

func init() {
	// Load judgment prompt during package initialization
	promptBytes, err := promptFS.ReadFile("prompts/judgment_prompt.txt")
	if err != nil {
		judgmentPromptError = fmt.Errorf("failed to load judgment prompt: %w", err)
		return
	}
	judgmentPromptText = string(promptBytes)
}

// promptData is the value the judgment prompt template is executed with
type promptData struct {
	Draft string
}

// DefaultPrompt returns the built-in judgment prompt template
func DefaultPrompt() (string, error) {
	return judgmentPromptText, judgmentPromptError
}

func parsePrompt(text string) (*template.Template, error) {
	if !strings.Contains(text, "{{") {
		return nil, fmt.Errorf("%w: prompt template must reference {{.Draft}}", ErrInvalidConfig)
	}
	tmpl, err := template.New("judgment").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid prompt template: %w", err)
	}
	return tmpl, nil
}

func renderPrompt(tmpl *template.Template, draft string) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, promptData{Draft: draft}); err != nil {
		return "", fmt.Errorf("failed to render judgment prompt: %w", err)
	}
	return sb.String(), nil
}
