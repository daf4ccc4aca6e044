package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/manohar-125/ThalAI-App/internal/model"
)

// Reader errors.
var (
	ErrInputCancelled   = errors.New("input canceled")
	ErrMalformedRequest = errors.New("malformed request")
)

// RequestReader reads newline-delimited JSON prediction requests. Blank
// lines are skipped.
type RequestReader struct {
	scanner *bufio.Scanner
	line    int
}

// NewRequestReader wraps r.
func NewRequestReader(r io.Reader) *RequestReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &RequestReader{scanner: sc}
}

// Next returns the next request, or io.EOF when input is exhausted. A
// malformed line returns ErrMalformedRequest naming the line; reading may
// continue. Any other error is final.
func (r *RequestReader) Next(ctx context.Context) (model.RawRecord, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, ErrInputCancelled
		}
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		r.line++

		text := bytes.TrimSpace(r.scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(text))
		dec.UseNumber()
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("line %d: %w: %w", r.line, ErrMalformedRequest, err)
		}
		if rec == nil {
			return nil, fmt.Errorf("line %d: %w: expected a JSON object", r.line, ErrMalformedRequest)
		}
		return model.RawRecord(rec), nil
	}
}

// Line is the number of the last line read.
func (r *RequestReader) Line() int {
	return r.line
}
