package epub

import (
	"regexp"
	"strconv"
	"strings"
)

var numericEntityRe = regexp.MustCompile(`&#(x[0-9a-fA-F]+|[0-9]+);`)

var namedEntities = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

// decodeEntities resolves the small set of character references that show up
// in real package documents: the five named XML entities plus numeric
// references in decimal (&#NNN;) and hex (&#xHH;) form.
func decodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	s = numericEntityRe.ReplaceAllStringFunc(s, func(m string) string {
		body := m[2 : len(m)-1]
		var code int64
		var err error
		if body[0] == 'x' || body[0] == 'X' {
			code, err = strconv.ParseInt(body[1:], 16, 32)
		} else {
			code, err = strconv.ParseInt(body, 10, 32)
		}
		if err != nil || code <= 0 {
			return m
		}
		return string(rune(code))
	})
	return namedEntities.Replace(s)
}
