// Package sse decodes server-sent event streams into discrete events.
//
// The decoder follows the WHATWG event stream interpretation rules: records
// are separated by blank lines, lines may end in CRLF, LF or CR, comment
// lines start with a colon and a record is only dispatched once its
// terminating blank line arrives.
package sse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Event is one dispatched record of an event stream.
type Event struct {
	// Event is the event type, empty when the record had no event field.
	Event string
	// ID is the last event id seen on the stream, which carries across records.
	ID string
	// Retry is the reconnection time in milliseconds, zero when unset.
	Retry int
	Data  string
}

// Decode lazily yields events read from r in arrival order. The sequence
// ends when r reports io.EOF; any other read error is yielded once and ends
// the sequence. Bytes are decoded as UTF-8 incrementally, so runes split
// across reads survive and invalid sequences become U+FFFD.
func Decode(r io.Reader) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		d := newDecoder(r)
		for {
			ev, err := d.next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Event{}, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

type decoder struct {
	lines lineReader

	data    strings.Builder
	hasData bool
	event   string
	lastID  string
	retry   int
}

func newDecoder(r io.Reader) *decoder {
	text := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	return &decoder{lines: lineReader{br: bufio.NewReader(text)}}
}

func (d *decoder) next() (Event, error) {
	for {
		line, err := d.lines.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			return Event{}, fmt.Errorf("sse: read: %w", err)
		}
		if line == "" {
			if ev, ok := d.dispatch(); ok {
				return ev, nil
			}
			continue
		}
		d.field(line)
	}
}

func (d *decoder) dispatch() (Event, bool) {
	defer func() {
		d.data.Reset()
		d.hasData = false
		d.event = ""
	}()
	if !d.hasData {
		return Event{}, false
	}
	data := strings.TrimSuffix(d.data.String(), "\n")
	return Event{Event: d.event, ID: d.lastID, Retry: d.retry, Data: data}, true
}

func (d *decoder) field(line string) {
	if strings.HasPrefix(line, ":") {
		return
	}
	name, value, found := strings.Cut(line, ":")
	if found {
		value = strings.TrimPrefix(value, " ")
	}

	switch name {
	case "data":
		d.data.WriteString(value)
		d.data.WriteByte('\n')
		d.hasData = true
	case "event":
		d.event = value
	case "id":
		if !strings.ContainsRune(value, 0) {
			d.lastID = value
		}
	case "retry":
		if !isDigits(value) {
			return
		}
		if n, err := strconv.Atoi(value); err == nil {
			d.retry = n
		}
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// lineReader splits on CRLF, LF or CR. A CR ends the line right away and a
// directly following LF is dropped, so a bare CR never waits on the next read.
type lineReader struct {
	br     *bufio.Reader
	skipLF bool
	buf    []byte
}

func (l *lineReader) next() (string, error) {
	l.buf = l.buf[:0]
	for {
		b, err := l.br.ReadByte()
		if err != nil {
			// an unterminated trailing line is dropped with the record it belongs to
			return "", err
		}
		if l.skipLF {
			l.skipLF = false
			if b == '\n' {
				continue
			}
		}
		switch b {
		case '\n':
			return string(l.buf), nil
		case '\r':
			l.skipLF = true
			return string(l.buf), nil
		}
		l.buf = append(l.buf, b)
	}
}
