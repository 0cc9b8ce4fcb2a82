package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/qanuni/legalai/internal/domain"
)

// Decode stages reported by ParseError.
const (
	StageSyntax = "syntax"
	StageSchema = "schema"
)

// ParseError reports a model reply that could not be turned into the
// requested type. It is never retried against another provider.
type ParseError struct {
	Stage string
	Raw   string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is makes every ParseError match domain.ErrSchemaInvalid.
func (e *ParseError) Is(target error) bool { return target == domain.ErrSchemaInvalid }

var (
	fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)```")

	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() { validate = validator.New() })
	return validate
}

// Decode extracts the JSON document from a model reply, unmarshals it into T
// and validates struct tags. Syntax errors and validation failures come back
// as *ParseError.
func Decode[T any](raw string) (T, error) {
	var out T
	body := ExtractJSON(raw)
	if body == "" {
		return out, &ParseError{Stage: StageSyntax, Raw: raw, Err: errors.New("no json document in reply")}
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return out, &ParseError{Stage: StageSyntax, Raw: raw, Err: err}
	}
	if err := validateValue(out); err != nil {
		return out, &ParseError{Stage: StageSchema, Raw: raw, Err: err}
	}
	return out, nil
}

func validateValue(v any) error {
	err := getValidator().Struct(v)
	var inv *validator.InvalidValidationError
	if errors.As(err, &inv) {
		// not a struct (maps, slices): nothing to validate
		return nil
	}
	return err
}

// ExtractJSON strips markdown fences and surrounding prose, returning the
// outermost JSON object or array, or "" when there is none. A reply that is
// already a JSON document is returned as is, fences inside strings included.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if json.Valid([]byte(s)) && (strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")) {
		return s
	}
	if m := fencedBlock.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	open, closing := s[start], byte('}')
	if open == '[' {
		closing = ']'
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	// unbalanced: hand the remainder to the JSON decoder so it reports the error
	return s[start:]
}
