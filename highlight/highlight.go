// Package highlight applies ANSI syntax highlighting to the JSON
// rendering of a decoded AMP packet, for the tui and any future
// terminal consumer. Same chroma lexer+formatter+style pipeline as a
// SQL highlighter would use, pointed at the "json" lexer instead of
// "sql".
package highlight

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

var (
	lexer     chroma.Lexer
	formatter chroma.Formatter
	style     *chroma.Style
)

func init() {
	lexer = lexers.Get("json")
	formatter = formatters.Get("terminal256")
	style = styles.Get("monokai")
}

// JSON returns s with ANSI terminal syntax highlighting applied, as if s
// were a JSON document. On error or empty input, the original string is
// returned unchanged.
func JSON(s string) string {
	if s == "" {
		return s
	}

	iterator, err := lexer.Tokenise(nil, s)
	if err != nil {
		return s
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return s
	}

	return strings.TrimRight(buf.String(), "\n")
}
