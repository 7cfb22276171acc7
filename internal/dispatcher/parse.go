package dispatcher

import (
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
)

// tokenize splits the text after the prefix according to mode.
func tokenize(s string, mode ArgMode) ([]string, error) {
	switch mode {
	case ArgsShell:
		tokens, err := shellquote.Split(s)
		if err != nil {
			return nil, fmt.Errorf("parse arguments: %w", err)
		}
		return tokens, nil
	default:
		return strings.Fields(s), nil
	}
}
