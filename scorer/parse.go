package scorer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Judgment is a validated effort estimate
type Judgment struct {
	Effort int
	Notes  string
}

// ParseJudgment runs the model output through every parser stage:
// trim, fence strip, brace extraction, decode, validate.
func ParseJudgment(raw string) (Judgment, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return Judgment{}, ErrEmptyResponse
	}
	content = stripFence(content)
	content = extractObject(content)

	payload, err := decodeJudgment(content)
	if err != nil {
		return Judgment{}, err
	}
	return validateJudgment(payload)
}

// stripFence removes a markdown code fence around the payload.
// LLMs often wrap JSON in ```json ... ``` blocks even when instructed not to.
func stripFence(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Skip a language identifier on the first line
		if idx := strings.Index(text, "\n"); idx >= 0 {
			firstLine := strings.TrimSpace(text[:idx])
			if len(firstLine) < 20 && !strings.Contains(firstLine, " ") && !strings.Contains(firstLine, "{") {
				text = text[idx+1:]
			}
		} else {
			text = strings.TrimPrefix(text, "json")
		}
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")

	return strings.TrimSpace(text)
}

// extractObject keeps the text between the first '{' and the last '}'
func extractObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}

func decodeJudgment(text string) (judgmentPayload, error) {
	var payload judgmentPayload

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	// Decoder errors are returned unwrapped
	if err := dec.Decode(&payload); err != nil {
		return payload, err
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return payload, fmt.Errorf("extra data after offset %d", dec.InputOffset())
	}
	return payload, nil
}

func validateJudgment(payload judgmentPayload) (Judgment, error) {
	effort, err := effortValue(payload.EditEffort)
	if err != nil {
		return Judgment{}, err
	}

	notes, err := notesValue(payload.Notes)
	if err != nil {
		return Judgment{}, err
	}

	return Judgment{Effort: effort, Notes: notes}, nil
}

// effortValue accepts a JSON number or an integer string, truncating
// fractions toward zero and clamping to [0,100]
func effortValue(v any) (int, error) {
	var f float64

	switch val := v.(type) {
	case nil:
		return NeutralEffort, nil
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: edit_effort %q: %v", ErrInvalidJudgment, val.String(), err)
		}
		f = parsed
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("%w: edit_effort %q is not an integer", ErrInvalidJudgment, val)
		}
		f = float64(parsed)
	default:
		return 0, fmt.Errorf("%w: edit_effort has type %T", ErrInvalidJudgment, v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: edit_effort is not finite", ErrInvalidJudgment)
	}
	return int(clamp(math.Trunc(f), 0, 100)), nil
}

func notesValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return DefaultNote, nil
	case string:
		if notes := strings.TrimSpace(val); notes != "" {
			return notes, nil
		}
		return DefaultNote, nil
	default:
		return "", fmt.Errorf("%w: notes has type %T", ErrInvalidJudgment, v)
	}
}

// fallbackNote formats the note used when no judgment could be obtained
func fallbackNote(err error) string {
	msg := []rune(err.Error())
	if len(msg) > parseErrorMaxChars {
		msg = msg[:parseErrorMaxChars]
	}
	return ParseErrorPrefix + string(msg)
}
