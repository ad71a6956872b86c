package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errUnterminatedQuote = errors.New("unterminated quote")

// ExecuteLine runs one line of shell input: either a raw JSON request or
// "name arg..." with shell-style quoting.
func (d *Dispatcher) ExecuteLine(ctx context.Context, line string) Response {
	line = strings.TrimSpace(line)

	if strings.HasPrefix(line, "{") {
		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			return d.failure("", &InvalidCommandError{Reason: fmt.Sprintf("malformed request: %v", err)})
		}
		return d.Execute(ctx, req)
	}

	words, err := SplitLine(line)
	if err != nil {
		return d.failure("", &InvalidCommandError{Reason: err.Error()})
	}
	if len(words) == 0 {
		return d.failure("", &InvalidCommandError{Reason: "empty command"})
	}

	c, ok := d.Lookup(words[0])
	if !ok {
		return d.failure(words[0], &InvalidCommandError{Command: words[0], Reason: "unknown command"})
	}
	args, err := c.ParseArgs(words[1:])
	if err != nil {
		return d.failure(c.Name, err)
	}
	return d.Run(ctx, c, args)
}

// SplitLine splits a command line into words. Single and double quotes group words,
// and a backslash escapes the next character outside single quotes.
// Escape sequences \n, \r and \t inside double quotes produce control characters.
func SplitLine(line string) ([]string, error) {
	var (
		words   []string
		current strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range line {
		switch {
		case escaped:
			if quote == '"' {
				r = unescape(r)
			}
			current.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				words = append(words, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}

	if quote != 0 || escaped {
		return nil, errUnterminatedQuote
	}
	if inWord {
		words = append(words, current.String())
	}
	return words, nil
}

func unescape(r rune) rune {
	switch r {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	default:
		return r
	}
}
