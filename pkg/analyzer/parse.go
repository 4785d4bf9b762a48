package analyzer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Score accepts a reliability written as a number, a numeric string, or a percentage string.
type Score float64

// UnmarshalJSON implements json.Unmarshaler.
func (s *Score) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*s = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		str = strings.TrimSpace(str)
		percent := strings.HasSuffix(str, "%")
		str = strings.TrimSuffix(str, "%")
		if str == "" {
			*s = 0
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return fmt.Errorf("reliability %q: %w", str, err)
		}
		if percent {
			f /= 100
		}
		*s = Score(f)
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("reliability %s: %w", raw, err)
	}
	*s = Score(f)
	return nil
}

// ParseResult extracts the first JSON object from provider text. Markdown
// fences and chatter around the object are ignored.
func ParseResult(text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyResponse
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return nil, fmt.Errorf("no json object: %w", ErrMalformedResponse)
	}

	var result Result
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrMalformedResponse)
	}

	result.Recommendation = strings.ToLower(strings.TrimSpace(result.Recommendation))
	result.ExtractedFields.IBAN = strings.ReplaceAll(strings.ToUpper(result.ExtractedFields.IBAN), " ", "")
	return &result, nil
}
