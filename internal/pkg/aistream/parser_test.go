package aistream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const geminiStream = `[{
  "candidates": [
    {
      "content": {
        "parts": [
          {
            "text": "Bonjour"
          }
        ],
        "role": "model"
      }
    }
  ]
}
,
{
  "candidates": [
    {
      "content": {
        "parts": [
          {
            "text": " le \"monde\"\nligne 2\r\n"
          }
        ],
        "role": "model"
      }
    }
  ]
}
,
{
  "candidates": [
    {
      "content": {
        "parts": [
          {
            "text":"– café \\ \t fin"
          }
        ],
        "role": "model"
      },
      "finishReason": "STOP"
    }
  ],
  "usageMetadata": {"promptTokenCount": 12}
}
]`

const wantText = "Bonjour le \"monde\"\nligne 2\n– café \\\\ \\t fin"

func feedAll(chunks [][]byte) string {
	var p Parser
	var b strings.Builder
	for _, c := range chunks {
		for _, frag := range p.Feed(c) {
			b.WriteString(frag)
		}
	}
	return b.String()
}

func TestParserSingleChunk(t *testing.T) {
	assert.Equal(t, wantText, feedAll([][]byte{[]byte(geminiStream)}))
}

func TestParserSplitAtEveryByte(t *testing.T) {
	data := []byte(geminiStream)
	want := feedAll([][]byte{data})

	for i := 0; i <= len(data); i++ {
		got := feedAll([][]byte{data[:i], data[i:]})
		require.Equal(t, want, got, "split at %d", i)
	}
}

func TestParserByteAtATime(t *testing.T) {
	data := []byte(geminiStream)
	chunks := make([][]byte, len(data))
	for i := range data {
		chunks[i] = data[i : i+1]
	}
	assert.Equal(t, wantText, feedAll(chunks))
}

func TestParserThreeWaySplits(t *testing.T) {
	data := []byte(geminiStream)
	want := feedAll([][]byte{data})
	for i := 0; i < len(data); i += 7 {
		for j := i; j <= len(data); j += 13 {
			got := feedAll([][]byte{data[:i], data[i:j], data[j:]})
			require.Equal(t, want, got, "split at %d/%d", i, j)
		}
	}
}

func TestParserKeepsUnmatchedTail(t *testing.T) {
	var p Parser
	assert.Empty(t, p.Feed([]byte(`{"text": "hel`)))
	assert.Equal(t, len(`{"text": "hel`), p.Pending())
	assert.Equal(t, []string{"hello"}, p.Feed([]byte(`lo"}`)))
	assert.Equal(t, 1, p.Pending())
}

func TestParserIgnoresOtherFields(t *testing.T) {
	var p Parser
	assert.Empty(t, p.Feed([]byte(`{"role": "model", "textual": "x", "finishReason": "STOP"}`)))
}

func TestParserFirstMatchWins(t *testing.T) {
	var p Parser
	got := p.Feed([]byte(`{"text": "a"}{"text": "b"}`))
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 1, p.Pending())
}

func TestUnescape(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`plain`, "plain"},
		{`a\nb`, "a\nb"},
		{`say \"hi\"`, `say "hi"`},
		{`cr\r\nlf`, "cr\nlf"},
		{`tab\there`, `tab\there`},
		{`back\\slash`, `back\\slash`},
		{`é`, `é`},
		{`trailing\`, `trailing\`},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, Unescape(tc.in))
		})
	}
}
