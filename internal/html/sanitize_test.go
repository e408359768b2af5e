package html

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"<b>bold</b> and <i>italic</i>":   "<b>bold</b> and <i>italic</i>",
		"<script>alert(1)</script>":       "&lt;script&gt;alert(1)&lt;/script&gt;",
		"1 < 2 & 3 > 2":                   "1 &lt; 2 &amp; 3 &gt; 2",
		"<tg-spoiler>hidden</tg-spoiler>": "<tg-spoiler>hidden</tg-spoiler>",
		"line<br/>next":                   "line\nnext",
		"<div>text</div>":                 "&lt;div&gt;text&lt;/div&gt;",
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			got, err := SanitizeTelegram(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestSanitize_CustomTags(t *testing.T) {
	got, err := Sanitize("<b>x</b><i>y</i>", []string{"i"})
	require.NoError(t, err)
	assert.Equal(t, "&lt;b&gt;x&lt;/b&gt;<i>y</i>", got)
}

func TestPlain(t *testing.T) {
	assert.Equal(t, "bold & <raw>", Plain("<b>bold</b> &amp; &lt;raw&gt;"))
	assert.Equal(t, "a\nb", Plain("a<br/>b"))
}
