// Package chunk splits outbound text into messages that fit a transport's
// maximum payload size.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxLength leaves headroom under Telegram's 4096 limit.
const DefaultMaxLength = 4000

// Split packs the lines of text greedily into chunks of at most maxLength
// units, measured as UTF-16 code units like the Bot API counts them.
//
// Each chunk is trimmed of surrounding whitespace and chunks that trim to
// nothing are dropped. A single line longer than maxLength is emitted as its
// own oversized chunk without being split further.
func Split(text string, maxLength int) []string {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	var chunks []string
	var buf strings.Builder
	bufLen := 0

	flush := func() {
		if c := strings.TrimSpace(buf.String()); c != "" {
			chunks = append(chunks, c)
		}
		buf.Reset()
		bufLen = 0
	}

	for _, line := range strings.Split(text, "\n") {
		n := Length(line) + 1
		if bufLen+n > maxLength && bufLen > 0 {
			flush()
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
		bufLen += n
	}
	flush()
	return chunks
}

// Length returns the number of UTF-16 code units in s.
func Length(s string) int {
	n := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
