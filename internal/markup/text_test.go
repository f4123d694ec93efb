package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input string
		want  string
	}{
		{input: "plain   words\n here", want: "plain words here"},
		{input: "<p>Hello <b>world</b></p>", want: "Hello world"},
		{input: "<div>a<script>alert(1)</script> b</div>", want: "a b"},
		{input: "Fish &amp; chips", want: "Fish & chips"},
		{input: "", want: ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, PlainText(tc.input), "input %q", tc.input)
	}
}
