package ast

import (
	"bytes"
	"fmt"
)

// Format returns a multi-line, indented view of the tree.
func Format(node Node) string {
	p := &printer{}
	p.writeNode(node)
	return p.buf.String()
}

type printer struct {
	buf    bytes.Buffer
	indent int
}

func (p *printer) line(format string, args ...interface{}) {
	for i := 0; i < p.indent; i++ {
		p.buf.WriteString("  ")
	}
	fmt.Fprintf(&p.buf, format, args...)
	p.buf.WriteByte('\n')
}

func (p *printer) writeNode(node Node) {
	switch n := node.(type) {
	case *NumberLiteral:
		p.line("Number(%s)", n.Literal)
	case *StringLiteral:
		p.line("String(%q)", n.Value)
	case *BooleanLiteral:
		p.line("Boolean(%t)", n.Value)
	case *ErrorLiteral:
		p.line("Error(%s)", n.Literal)
	case *CellRef:
		if n.HasSheet {
			p.line("CellRef(%s!%s)", n.Sheet, n.Location)
		} else {
			p.line("CellRef(%s)", n.Location)
		}
	case *PrefixExpression:
		p.line("Prefix(%s)", n.Operator)
		p.indent++
		p.writeNode(n.Right)
		p.indent--
	case *InfixExpression:
		p.line("Infix(%s)", n.Operator)
		p.indent++
		p.line("Left:")
		p.indent++
		p.writeNode(n.Left)
		p.indent--
		p.line("Right:")
		p.indent++
		p.writeNode(n.Right)
		p.indent--
		p.indent--
	case *ParenExpression:
		p.line("Parens")
		p.indent++
		p.writeNode(n.Inner)
		p.indent--
	case *CallExpression:
		p.line("Call(%s)", n.Name)
		p.indent++
		for _, arg := range n.Arguments {
			p.writeNode(arg)
		}
		p.indent--
	}
}
