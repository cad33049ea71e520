package csvio

// streaming.go wraps raw input so the CSV decoder sees clean text:
//
//   - bomSkipper drops a leading UTF-8 BOM (0xEF 0xBB 0xBF) left by Excel
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?'
//   - CountingReader tracks bytes read for upload size limits
//
// Use Wrap to apply all three in the right order.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// bomSkipper removes a UTF-8 BOM from the start of the stream.
type bomSkipper struct {
	br      *bufio.Reader
	checked bool
}

func newBOMSkipper(r io.Reader) *bomSkipper {
	return &bomSkipper{br: bufio.NewReader(r)}
}

func (b *bomSkipper) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		head, err := b.br.Peek(len(utf8BOM))
		if err != nil && err != io.EOF {
			return 0, err
		}
		if bytes.Equal(head, utf8BOM) {
			_, _ = b.br.Discard(len(utf8BOM))
		}
	}
	return b.br.Read(p)
}

// sanitizeChunk is how much raw input utf8Sanitizer reads at a time.
const sanitizeChunk = 4096

// utf8Sanitizer replaces invalid UTF-8 sequences with '?'. A multi-byte rune
// split across two reads of the source is held back until it completes.
// Callers may read with buffers of any size.
type utf8Sanitizer struct {
	r      io.Reader
	raw    []byte // held-back partial rune followed by fresh input
	outBuf []byte
	out    []byte // sanitized bytes not yet returned
	err    error
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, raw: make([]byte, 0, sanitizeChunk+utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.fill()
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

// fill reads the next chunk and sanitizes it into out.
func (s *utf8Sanitizer) fill() {
	held := len(s.raw)
	n, err := s.r.Read(s.raw[held:cap(s.raw)])
	s.raw = s.raw[:held+n]
	s.err = err

	used := s.sanitize(err != nil)
	s.raw = s.raw[:copy(s.raw, s.raw[used:])]
}

// sanitize converts raw into out and returns how many raw bytes it consumed.
// Unless final is set, an incomplete trailing rune is left unconsumed.
func (s *utf8Sanitizer) sanitize(final bool) int {
	out := s.outBuf[:0]
	data := s.raw
	r := 0
	for r < len(data) {
		if data[r] < utf8.RuneSelf {
			out = append(out, data[r])
			r++
			continue
		}
		if !final && !utf8.FullRune(data[r:]) {
			break
		}
		ch, size := utf8.DecodeRune(data[r:])
		if ch == utf8.RuneError && size == 1 {
			out = append(out, '?')
			r++
			continue
		}
		out = append(out, data[r:r+size]...)
		r += size
	}
	s.outBuf = out
	s.out = out
	return r
}

// CountingReader counts bytes read from the underlying reader.
type CountingReader struct {
	r         io.Reader
	BytesRead int64
}

// Read implements io.Reader.
func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.BytesRead += int64(n)
	return n, err
}

// Wrap strips the BOM, sanitizes UTF-8 and counts bytes, in that order.
func Wrap(r io.Reader) *CountingReader {
	return &CountingReader{r: newUTF8Sanitizer(newBOMSkipper(r))}
}
