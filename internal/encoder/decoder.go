// Package encoder decodes quadrature rotary encoders into signed steps.
package encoder

// transitions maps prev<<2|cur (state = A<<1|B) to a quarter step.
// Clockwise is 11 -> 01 -> 00 -> 10 -> 11. Transitions where both phases
// change at once are invalid and contribute nothing.
var transitions = [16]int{
	0b0000: 0, 0b0001: -1, 0b0010: +1, 0b0011: 0,
	0b0100: +1, 0b0101: 0, 0b0110: 0, 0b0111: -1,
	0b1000: -1, 0b1001: 0, 0b1010: 0, 0b1011: +1,
	0b1100: 0, 0b1101: +1, 0b1110: -1, 0b1111: 0,
}

// Decoder turns phase edges into steps. A step is emitted each time the
// phases reach a rest state (00 or 11) after at least two quarter steps in
// the same direction, so contact bounce around a rest state cancels out.
// The zero value is not ready; use NewDecoder.
type Decoder struct {
	a, b  int
	state int
	acc   int
}

// NewDecoder returns a decoder whose phases idle high.
func NewDecoder() *Decoder {
	return &Decoder{a: 1, b: 1, state: 0b11}
}

// EdgeA records a level on phase A and returns +1, -1 or 0.
func (d *Decoder) EdgeA(level int) int {
	d.a = bit(level)
	return d.advance()
}

// EdgeB records a level on phase B and returns +1, -1 or 0.
func (d *Decoder) EdgeB(level int) int {
	d.b = bit(level)
	return d.advance()
}

func (d *Decoder) advance() int {
	next := d.a<<1 | d.b
	if next == d.state {
		return 0
	}
	d.acc += transitions[d.state<<2|next]
	d.state = next
	if next != 0b00 && next != 0b11 {
		return 0
	}
	step := 0
	switch {
	case d.acc >= 2:
		step = 1
	case d.acc <= -2:
		step = -1
	}
	d.acc = 0
	return step
}

func bit(level int) int {
	if level != 0 {
		return 1
	}
	return 0
}
