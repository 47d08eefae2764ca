package sqlcmd

import (
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/mirvladiandr/t-pg/datum"
)

// ParamPrefix marks a positional placeholder in a command template:
// '$' followed by a 1-based decimal index.
const ParamPrefix = "$"

// maxParams is the largest parameter count the Bind message can carry;
// counts go over the wire as int16.
const maxParams = math.MaxInt16

// Command pairs a textual template containing numbered placeholders with the
// parameter list bound to them.
//
//	sqlcmd.New("INSERT INTO t (name, data) VALUES ($1, $2)").Arg(name).Arg(data)
type Command struct {
	text   string
	params Params
}

func New(text string) *Command {
	return &Command{text: text}
}

// Arg appends one argument to the parameter list. See Params.Arg for the
// empty-argument policy.
func (c *Command) Arg(v interface{}) *Command {
	c.params.Arg(v)
	return c
}

// Text returns the command template.
func (c *Command) Text() string {
	return c.text
}

func (c *Command) Params() *Params {
	return &c.params
}

// PlaceholderCount counts occurrences of the placeholder marker in the
// template. This is a literal scan, not a parse: a '$' inside a quoted
// string literal is counted as a placeholder too.
func (c *Command) PlaceholderCount() int {
	return strings.Count(c.text, ParamPrefix)
}

// Valid reports whether the command is internally consistent: non-empty
// template, parameter count within the wire's positional range, payload and
// format counts equal, and accepted-parameter count equal to the placeholder
// count. A silently dropped empty argument fails the last check.
func (c *Command) Valid() bool {
	n := c.params.Len()
	return c.text != "" &&
		n <= maxParams &&
		n == len(c.params.payloads) &&
		n == len(c.params.formats) &&
		n == c.PlaceholderCount()
}

// Append concatenates another command onto this one: template text and
// parameter lists are joined positionally. Placeholders in the appended half
// are not renumbered, so fragments must be authored with compatible
// numbering.
func (c *Command) Append(d *Command) *Command {
	c.text += d.text
	c.params.Append(&d.params)
	return c
}

// AppendText appends raw template text, leaving parameters untouched.
func (c *Command) AppendText(text string) *Command {
	c.text += text
	return c
}

// Concat returns a new command holding deep copies of a then b.
func Concat(a, b *Command) *Command {
	c := &Command{text: a.text, params: a.params.clone()}
	return c.Append(b)
}

// Render substitutes text-format parameters positionally into their
// placeholders; binary parameters are left as-is. This is a diagnostic
// rendering only and is never what goes over the wire.
func (c *Command) Render() string {
	out := c.text
	for i, payload := range c.params.payloads {
		if c.params.formats[i] == datum.FormatText {
			out = strings.ReplaceAll(out, ParamPrefix+strconv.Itoa(i+1), datum.DecodeText(payload))
		}
	}
	return out
}

// Debug logs the rendered command.
func (c *Command) Debug() {
	log.Printf("%s", c.Render())
}
