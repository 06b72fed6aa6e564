// Package stream decodes the newline-delimited JSON frames an LLM
// provider emits while generating a reply. The decoder is incremental:
// it never waits for the full response, surfacing each content delta
// as soon as its line arrives, regardless of how the transport
// fragments the bytes.
package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"ctxrag/internal/domain"
)

type message struct {
	Content *string `json:"content"`
}

type frame struct {
	Message *message `json:"message"`
	Done    bool     `json:"done"`
	Error   string   `json:"error"`
}

var ssePrefix = []byte("data: ")

// Decoder reads one provider stream. It is not safe for concurrent use.
type Decoder struct {
	r        *bufio.Reader
	log      *slog.Logger
	warnings int
	done     bool
	failure  error
}

func NewDecoder(r io.Reader, log *slog.Logger) *Decoder {
	if log == nil {
		log = slog.Default()
	}
	return &Decoder{r: bufio.NewReader(r), log: log}
}

// Next returns the next content delta. It returns io.EOF once the
// stream reports completion or the underlying reader ends. A provider
// error frame or a broken transport yields ErrStreamTerminated.
func (d *Decoder) Next() (string, error) {
	for !d.done {
		line, err := d.r.ReadBytes('\n')
		if err != nil {
			d.done = true
			if !errors.Is(err, io.EOF) {
				d.failure = fmt.Errorf("%w: %v", domain.ErrStreamTerminated, err)
				break
			}
			// an unterminated trailing frame still counts
			if delta, ok := d.decodeLine(line); ok {
				return delta, nil
			}
			break
		}

		if delta, ok := d.decodeLine(line); ok {
			return delta, nil
		}
	}
	if d.failure != nil {
		return "", d.failure
	}
	return "", io.EOF
}

// Warnings reports how many malformed frames were skipped.
func (d *Decoder) Warnings() int {
	return d.warnings
}

func (d *Decoder) decodeLine(line []byte) (string, bool) {
	line = bytes.TrimPrefix(bytes.TrimSpace(line), ssePrefix)
	if len(line) == 0 {
		return "", false
	}

	var f frame
	if err := json.Unmarshal(line, &f); err != nil {
		d.warnings++
		d.log.Warn("skipping malformed stream frame", "error", err)
		return "", false
	}

	if f.Error != "" {
		d.done = true
		d.failure = fmt.Errorf("%w: provider reported: %s", domain.ErrStreamTerminated, f.Error)
		return "", false
	}
	if f.Done {
		d.done = true
		if f.Message != nil && f.Message.Content != nil && *f.Message.Content != "" {
			return *f.Message.Content, true
		}
		return "", false
	}
	if f.Message == nil || f.Message.Content == nil {
		d.warnings++
		d.log.Warn("skipping stream frame without content")
		return "", false
	}
	return *f.Message.Content, true
}
