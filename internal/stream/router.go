// Package stream splits a live, chunked model response at a marker.
//
// Models are prompted to think out loud and then emit a marker such as
// "<final>" before the answer. Router watches the chunks as they arrive
// and forwards only what follows the first marker, even when the marker
// itself is split across chunks.
package stream

import (
	"bytes"
	"errors"
)

var (
	// ErrEmptyMarker is returned by NewRouter for an empty marker.
	ErrEmptyMarker = errors.New("stream: marker must not be empty")

	// ErrNilConsumer is returned by NewRouter for a nil callback.
	ErrNilConsumer = errors.New("stream: content callback must not be nil")
)

// Router forwards everything after the first occurrence of a marker.
//
// Before the marker is seen, Router keeps only the last 2*len(marker)
// bytes of input, enough to catch a marker split across a chunk
// boundary. After the marker is seen, chunks pass straight through.
//
// Router is not safe for concurrent use. Feed chunks from one goroutine,
// in stream order.
type Router struct {
	marker    []byte
	onContent func(string)

	buf       []byte
	triggered bool
}

// NewRouter creates a router that calls onContent with content after marker.
func NewRouter(marker string, onContent func(string)) (*Router, error) {
	if marker == "" {
		return nil, ErrEmptyMarker
	}
	if onContent == nil {
		return nil, ErrNilConsumer
	}
	return &Router{
		marker:    []byte(marker),
		onContent: onContent,
		buf:       make([]byte, 0, 2*len(marker)),
	}, nil
}

// Feed consumes the next chunk of the stream.
func (r *Router) Feed(chunk string) {
	if r.triggered {
		if chunk != "" {
			r.onContent(chunk)
		}
		return
	}

	r.buf = append(r.buf, chunk...)

	if idx := bytes.Index(r.buf, r.marker); idx >= 0 {
		r.triggered = true
		rest := string(r.buf[idx+len(r.marker):])
		r.buf = nil
		if rest != "" {
			r.onContent(rest)
		}
		return
	}

	// Keep a tail of 2*len(marker) bytes; a split marker needs at most
	// len(marker)-1 of them.
	if keep := 2 * len(r.marker); len(r.buf) > keep {
		n := copy(r.buf, r.buf[len(r.buf)-keep:])
		r.buf = r.buf[:n]
	}
}

// Write implements io.Writer so a router can sit at the end of a copy or
// a tee. It never fails.
func (r *Router) Write(p []byte) (int, error) {
	r.Feed(string(p))
	return len(p), nil
}

// Triggered reports whether the marker has been seen.
func (r *Router) Triggered() bool {
	return r.triggered
}

// Marker returns the configured marker.
func (r *Router) Marker() string {
	return string(r.marker)
}
