package sqlcmd

import (
	"log"

	"github.com/mirvladiandr/t-pg/datum"
)

// Params is the ordered parameter list attached to a Command: one byte
// payload plus one format code per accepted argument, in argument order.
// The two sequences always have equal length.
type Params struct {
	payloads [][]byte
	formats  []datum.Format
}

// Arg encodes v onto the closed argument set and appends the resulting
// (payload, format) pair. An argument whose encoding is empty (empty string,
// empty byte slice, NULL) is rejected: a diagnostic is logged and nothing is
// appended. The owning Command then has fewer parameters than placeholders,
// which Command.Valid reports downstream.
func (p *Params) Arg(v interface{}) *Params {
	payload, format := datum.EncodeParam(datum.FromArg(v))
	if len(payload) == 0 {
		log.Printf("error - invalid SQL argument, empty data")
		return p
	}
	p.payloads = append(p.payloads, payload)
	p.formats = append(p.formats, format)
	return p
}

// Len returns the number of accepted parameters.
func (p *Params) Len() int {
	return len(p.payloads)
}

// Payloads returns the parameter payloads in argument order.
func (p *Params) Payloads() [][]byte {
	return p.payloads
}

// Formats returns the per-parameter format codes in argument order.
func (p *Params) Formats() []datum.Format {
	return p.formats
}

// Append concatenates q onto p: p's entries first, then deep copies of q's,
// with no renumbering. Payload bytes are copied so the lists stay independent.
func (p *Params) Append(q *Params) *Params {
	for _, payload := range q.payloads {
		p.payloads = append(p.payloads, append([]byte(nil), payload...))
	}
	p.formats = append(p.formats, q.formats...)
	return p
}

func (p *Params) clone() Params {
	var c Params
	c.Append(p)
	return c
}
