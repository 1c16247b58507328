package mistral

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// maxSSELineSize caps a single SSE line (1 MB). The default bufio.Scanner
// limit of 64 KiB is too small for long completion deltas.
const maxSSELineSize = 1 * 1024 * 1024

// sseScanner reads server-sent events from a response body. It joins
// multi-line data fields, skips comments and blank lines, and maps the
// [DONE] sentinel to io.EOF.
type sseScanner struct {
	scanner *bufio.Scanner
}

func newSSEScanner(r io.Reader) *sseScanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)
	return &sseScanner{scanner: scanner}
}

// Next returns the next event's data payload. It returns io.EOF at the
// end of the stream or when the [DONE] sentinel arrives.
func (s *sseScanner) Next() (string, error) {
	var dataLines []string

	for s.scanner.Scan() {
		line := s.scanner.Text()

		// A blank line ends the current event.
		if line == "" {
			if len(dataLines) > 0 {
				return strings.Join(dataLines, "\n"), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return "", io.EOF
			}
			dataLines = append(dataLines, data)
			continue
		}
		// Other SSE fields (event:, id:, retry:) are not used.
	}

	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("sse scan: %w", err)
	}
	if len(dataLines) > 0 {
		return strings.Join(dataLines, "\n"), nil
	}
	return "", io.EOF
}
