package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", " \n\t ", ""},
		{"plain", "Markets rallied today.", "Markets rallied today."},
		{"tags", "<p>Hello <b>world</b></p>", "Hello world"},
		{"entities", "Fish &amp; chips", "Fish & chips"},
		{"urls", "Read more at https://example.com/a?b=c or www.example.org today", "Read more at or today"},
		{"emails", "Reply to editor@news.example.com for help", "Reply to for help"},
		{"whitespace", "  one\n\n two\t\tthree  ", "one two three"},
		{"quotes", `He said "buy"`, `He said \"buy\"`},
		{"escaped quotes kept", `He said \"buy\"`, `He said \"buy\"`},
		{"script", "<script>alert(1)</script>Safe", "Safe"},
		{"entity encoded tag", "&lt;b&gt;bold&lt;/b&gt; text", "bold text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		`<div class="x">Quote: "hi" &quot;there&quot;</div>`,
		"Visit https://a.example/x\"y and mail me@a.example",
		"&amp;lt;p&amp;gt;double encoded&amp;lt;/p&amp;gt;",
		"<a href=\"https://x.example\">link</a>\r\n\r\nnext paragraph",
		`trailing backslash \`,
		`"`,
		"tabs\tand nbsp",
		"1 < 2 && 3 > 2",
		nestedEntities(10),
	}

	for _, in := range inputs {
		once := Clean(in)
		assert.Equal(t, once, Clean(once), "input %q", in)
	}
}

// nestedEntities encodes "<b>x" with depth levels of &amp; on each bracket.
func nestedEntities(depth int) string {
	amp := "&" + strings.Repeat("amp;", depth)
	return amp + "lt;b" + amp + "gt;x"
}

func TestCleanDecodesEveryEntityLevel(t *testing.T) {
	for _, depth := range []int{1, 8, 10, 25} {
		assert.Equal(t, "x", Clean(nestedEntities(depth)), "depth %d", depth)
	}
}
