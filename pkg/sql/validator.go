// Package sql screens SQL text before it reaches a data source: generated
// or user-supplied queries must be a single read-only statement, and
// free-text filter values must not look like injection payloads.
package sql

import (
	"errors"
	"strings"
	"unicode"
)

var (
	// ErrEmptyStatement indicates the query has no SQL after normalization.
	ErrEmptyStatement = errors.New("SQL statement is empty")

	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")

	// ErrNotReadOnly indicates the statement can modify data or schema.
	ErrNotReadOnly = errors.New("only read-only SELECT statements are allowed")
)

// readStatements are the keywords a read-only statement may start with.
var readStatements = map[string]bool{
	"SELECT": true,
	"WITH":   true,
	"VALUES": true,
}

// writeKeywords may not appear anywhere outside literals and comments.
// WITH ... DELETE and similar data-modifying CTEs are caught here.
var writeKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true, "UPSERT": true,
	"DROP": true, "CREATE": true, "ALTER": true, "TRUNCATE": true,
	"RENAME": true, "GRANT": true, "REVOKE": true, "ATTACH": true, "DETACH": true,
	"PRAGMA": true, "VACUUM": true, "COPY": true, "CALL": true, "EXEC": true,
	"EXECUTE": true, "LOCK": true, "INTO": true,
}

// ValidationResult contains the normalized SQL and any validation errors.
type ValidationResult struct {
	NormalizedSQL string
	Error         error
}

// quoting lists the literal conventions a statement is checked under.
// Standard SQL only doubles quotes; MySQL also honors backslash escapes. A
// statement must be safe under both, so text that one dialect reads as a
// literal cannot hide a statement from the other.
var quoting = []bool{false, true}

// ValidateAndNormalize checks SQL for multiple statements and strips the
// trailing semicolon along with any trailing comments.
//
// The validation order is:
// 1. Strip trailing comments, semicolon and whitespace (normalize)
// 2. Check for multiple statements (any remaining semicolons outside literals and comments)
func ValidateAndNormalize(sqlQuery string) ValidationResult {
	sqlQuery = strings.TrimSpace(sqlQuery)
	if sqlQuery == "" {
		return ValidationResult{NormalizedSQL: sqlQuery}
	}

	normalized := stripTrailingSemicolon(sqlQuery)
	for _, backslash := range quoting {
		if hasSemicolonOutsideStrings(normalized, backslash) {
			return ValidationResult{Error: ErrMultipleStatements}
		}
	}
	return ValidationResult{NormalizedSQL: normalized}
}

// ValidateReadOnly returns the normalized statement when sqlQuery is a
// single SELECT (or WITH/VALUES) statement that cannot write.
func ValidateReadOnly(sqlQuery string) (string, error) {
	result := ValidateAndNormalize(sqlQuery)
	if result.Error != nil {
		return "", result.Error
	}
	for _, backslash := range quoting {
		words := keywords(result.NormalizedSQL, backslash)
		if len(words) == 0 {
			return "", ErrEmptyStatement
		}
		if !readStatements[words[0]] {
			return "", ErrNotReadOnly
		}
		for _, w := range words[1:] {
			if writeKeywords[w] {
				return "", ErrNotReadOnly
			}
		}
	}
	return result.NormalizedSQL, nil
}

// scanState tracks whether a position is inside a literal or comment.
type scanState int

const (
	stateNormal scanState = iota
	stateSingleQuote
	stateDoubleQuote
	stateBacktick
	stateBracket
	stateLineComment
	stateBlockComment
)

func (s scanState) comment() bool {
	return s == stateLineComment || s == stateBlockComment
}

// scan walks sqlQuery and calls visit for every rune with its index and the
// state it belongs to. Quote and comment openers report the state they open.
// Returning false from visit stops the walk.
func scan(sqlQuery string, backslashEscapes bool, visit func(i int, r rune, st scanState) bool) {
	state := stateNormal
	runes := []rune(sqlQuery)

	for i := 0; i < len(runes); i++ {
		char := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch state {
		case stateNormal:
			switch {
			case char == '\'':
				state = stateSingleQuote
			case char == '"':
				state = stateDoubleQuote
			case char == '`':
				state = stateBacktick
			case char == '[':
				state = stateBracket
			case char == '-' && next == '-':
				state = stateLineComment
			case char == '/' && next == '*':
				state = stateBlockComment
			}
			if !visit(i, char, state) {
				return
			}
			if state.comment() {
				i++
				if i < len(runes) && !visit(i, runes[i], state) {
					return
				}
			}
			continue
		case stateSingleQuote:
			// a backslash takes the next rune into the literal
			if char == '\\' && backslashEscapes {
				if !visit(i, char, state) {
					return
				}
				i++
				if i < len(runes) && !visit(i, runes[i], state) {
					return
				}
				continue
			}
		case stateBlockComment:
			if char == '*' && next == '/' {
				if !visit(i, char, state) || !visit(i+1, next, state) {
					return
				}
				state = stateNormal
				i++
				continue
			}
		}

		current := state
		switch {
		case state == stateSingleQuote && char == '\'',
			state == stateDoubleQuote && char == '"',
			state == stateBacktick && char == '`',
			state == stateBracket && char == ']',
			state == stateLineComment && char == '\n':
			state = stateNormal
		}
		if !visit(i, char, current) {
			return
		}
	}
}

// hasSemicolonOutsideStrings returns true if the SQL contains any semicolon
// outside of literals, quoted identifiers and comments.
func hasSemicolonOutsideStrings(sqlQuery string, backslashEscapes bool) bool {
	found := false
	scan(sqlQuery, backslashEscapes, func(_ int, r rune, st scanState) bool {
		if st == stateNormal && r == ';' {
			found = true
			return false
		}
		return true
	})
	return found
}

// keywords returns the upper-cased bare words of sqlQuery in order. Literals
// and comments end the current word.
func keywords(sqlQuery string, backslashEscapes bool) []string {
	var (
		words   []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			words = append(words, strings.ToUpper(current.String()))
			current.Reset()
		}
	}
	scan(sqlQuery, backslashEscapes, func(_ int, r rune, st scanState) bool {
		if st == stateNormal && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			current.WriteRune(r)
		} else {
			flush()
		}
		return true
	})
	flush()
	return words
}

// stripTrailingSemicolon removes trailing comments and whitespace, then one
// trailing semicolon and whatever comments and whitespace precede it.
func stripTrailingSemicolon(sqlQuery string) string {
	runes := []rune(sqlQuery)
	end := significantEnd(runes)
	if end > 0 && runes[end-1] == ';' && normalAt(runes, end-1) {
		end = significantEnd(runes[:end-1])
	}
	return string(runes[:end])
}

// significantEnd returns the index just past the last rune that is neither
// whitespace nor part of a comment.
func significantEnd(runes []rune) int {
	end := 0
	scan(string(runes), false, func(i int, r rune, st scanState) bool {
		if !st.comment() && !unicode.IsSpace(r) {
			end = i + 1
		}
		return true
	})
	return end
}

func normalAt(runes []rune, at int) bool {
	normal := false
	scan(string(runes), false, func(i int, _ rune, st scanState) bool {
		if i == at {
			normal = st == stateNormal
			return false
		}
		return true
	})
	return normal
}
