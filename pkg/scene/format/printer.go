package format

import "strings"

// Printer builds formatted scene text one line at a time
type Printer struct {
	out   strings.Builder
	depth int // entry list nesting
}

// NewPrinter returns an empty Printer
func NewPrinter() *Printer {
	return &Printer{}
}

// String returns everything printed so far
func (p *Printer) String() string {
	return p.out.String()
}

// line writes s at the current depth
func (p *Printer) line(s string) {
	for i := 0; i < p.depth; i++ {
		p.out.WriteString(IndentString)
	}
	p.out.WriteString(s)
	p.out.WriteByte('\n')
}

func (p *Printer) blank() {
	p.out.WriteByte('\n')
}
