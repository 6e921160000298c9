// Package gcode parses the small slice of G-code a motion simulator
// cares about and plays it against a machine.
package gcode

import (
	"fmt"
	"strconv"
)

// Command is one parsed G-code word, like G1 X10 Y20 F3000.
type Command struct {
	// Letter is the command class: 'G', 'M' or 'T'.
	Letter byte

	// Number is the command code, the 28 in G28.
	Number int

	// Params maps parameter letters to their values, X to 10 for
	// "X10". A letter given without a value is stored as 0.
	Params map[byte]float64

	// Comment carries any trailing ; or ( comment, byte for byte.
	Comment string
}

// Has reports whether the command carries the parameter letter.
func (c *Command) Has(letter byte) bool {
	_, ok := c.Params[letter]
	return ok
}

// Param returns the value for a parameter letter.
func (c *Command) Param(letter byte) (float64, bool) {
	v, ok := c.Params[letter]
	return v, ok
}

// String renders the command word, "G1" style.
func (c *Command) String() string {
	return fmt.Sprintf("%c%d", c.Letter, c.Number)
}

// ParseLine parses one line of G-code. Blank lines and lines holding
// only a comment parse to (nil, nil).
func ParseLine(line string) (*Command, error) {
	i := skipSpaces(line, 0)
	if i >= len(line) {
		return nil, nil
	}
	if line[i] == ';' || line[i] == '(' {
		return nil, nil
	}

	letter := toUpper(line[i])
	if letter != 'G' && letter != 'M' && letter != 'T' {
		return nil, fmt.Errorf("gcode: expected G, M or T, got %q", string(line[i]))
	}
	i++

	number, next, err := scanInt(line, i)
	if err != nil {
		return nil, fmt.Errorf("gcode: %c needs a code number", letter)
	}
	i = next

	cmd := &Command{
		Letter: letter,
		Number: number,
		Params: make(map[byte]float64),
	}

	for {
		i = skipSpaces(line, i)
		if i >= len(line) {
			break
		}
		if line[i] == ';' || line[i] == '(' {
			cmd.Comment = line[i:]
			break
		}
		if !isLetter(line[i]) {
			return nil, fmt.Errorf("gcode: unexpected %q in %s", string(line[i]), cmd)
		}

		param := toUpper(line[i])
		i++

		value, next, err := scanFloat(line, i)
		if err != nil {
			return nil, fmt.Errorf("gcode: bad value for %c in %s: %w", param, cmd, err)
		}
		cmd.Params[param] = value
		i = next
	}

	return cmd, nil
}

func skipSpaces(s string, pos int) int {
	for pos < len(s) && (s[pos] == ' ' || s[pos] == '\t' || s[pos] == '\r') {
		pos++
	}
	return pos
}

func isLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func toUpper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

// scanInt reads a decimal integer starting at pos.
func scanInt(s string, pos int) (int, int, error) {
	start := pos
	for pos < len(s) && s[pos] >= '0' && s[pos] <= '9' {
		pos++
	}
	if pos == start {
		return 0, start, fmt.Errorf("gcode: expected a number")
	}
	n, err := strconv.Atoi(s[start:pos])
	if err != nil {
		return 0, start, err
	}
	return n, pos, nil
}

// scanFloat reads a float starting at pos. A bare parameter letter,
// "G28 X" style, reads as 0.
func scanFloat(s string, pos int) (float64, int, error) {
	start := pos
	if pos < len(s) && (s[pos] == '+' || s[pos] == '-') {
		pos++
	}
	for pos < len(s) && (s[pos] >= '0' && s[pos] <= '9' || s[pos] == '.') {
		pos++
	}
	if pos == start {
		return 0, start, nil
	}
	v, err := strconv.ParseFloat(s[start:pos], 64)
	if err != nil {
		return 0, start, err
	}
	return v, pos, nil
}
