package ingest

// readers.go builds the byte-level chain in front of the CSV parser:
//
//   - countingReader: tracks source bytes read for progress reporting
//   - a charset decoder: Windows-1252 and ISO-8859-x are decoded to UTF-8;
//     UTF-8 input has its BOM removed and invalid sequences replaced with U+FFFD
//
// Counting wraps the raw source so progress is measured against file size.

import (
	"fmt"
	"io"
	"sync/atomic"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/JonMunkholm/csvclean/internal/schema"
)

// countingReader counts bytes read. Count is safe to call from another
// goroutine while the reader is in use.
type countingReader struct {
	reader io.Reader
	n      atomic.Int64
	total  int64
}

func newCountingReader(r io.Reader, total int64) *countingReader {
	return &countingReader{reader: r, total: total}
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.n.Add(int64(n))
	return n, err
}

func (r *countingReader) Count() int64 { return r.n.Load() }

// Progress returns the read progress as a percentage (0-100), or 0 when the
// total is unknown.
func (r *countingReader) Progress() int {
	if r.total <= 0 {
		return 0
	}
	p := int(r.Count() * 100 / r.total)
	if p > 100 {
		p = 100
	}
	return p
}

// decoderFor returns the decoder for a config encoding name.
func decoderFor(name string) (*encoding.Decoder, error) {
	switch name {
	case schema.EncodingUTF8:
		return unicode.UTF8BOM.NewDecoder(), nil
	case schema.EncodingWindows1252:
		return charmap.Windows1252.NewDecoder(), nil
	case schema.EncodingISO88591:
		return charmap.ISO8859_1.NewDecoder(), nil
	case schema.EncodingISO885915:
		return charmap.ISO8859_15.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// wrap applies counting then decoding to r.
func wrap(r io.Reader, encodingName string, total int64) (io.Reader, *countingReader, error) {
	dec, err := decoderFor(encodingName)
	if err != nil {
		return nil, nil, err
	}
	counter := newCountingReader(r, total)
	return dec.Reader(counter), counter, nil
}
