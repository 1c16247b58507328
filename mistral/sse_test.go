package mistral

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEScanner(t *testing.T) {
	body := strings.Join([]string{
		": keep-alive comment",
		"data: {\"a\":1}",
		"",
		"data: line one",
		"data: line two",
		"",
		"data: [DONE]",
		"",
	}, "\n")

	s := newSSEScanner(strings.NewReader(body))

	first, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, first)

	second, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", second, "multi-line data fields are joined")

	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF, "[DONE] ends the stream")
}

func TestSSEScanner_EOFWithoutSentinel(t *testing.T) {
	s := newSSEScanner(strings.NewReader("data: tail event\n"))

	payload, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "tail event", payload, "a trailing event without a blank line still flushes")

	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}
