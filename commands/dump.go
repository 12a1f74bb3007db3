package commands

import (
	"fmt"
	"strings"
)

// dumper renders "TypeName{field=value, ...}".
type dumper struct {
	b     strings.Builder
	first bool
}

func dump(name string) *dumper {
	d := &dumper{first: true}
	d.b.WriteString(name)
	d.b.WriteByte('{')
	return d
}

func (d *dumper) add(name string, v any) *dumper {
	if !d.first {
		d.b.WriteString(", ")
	}
	d.first = false
	d.b.WriteString(name)
	d.b.WriteByte('=')
	d.b.WriteString(formatValue(v))
	return d
}

func (d *dumper) String() string {
	return d.b.String() + "}"
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case DataStructure:
		if IsNil(x) {
			return "nil"
		}
		return x.String()
	case *BrokerError:
		if x == nil {
			return "nil"
		}
		return x.String()
	case string:
		return fmt.Sprintf("%q", x)
	case []byte:
		if x == nil {
			return "nil"
		}
		return fmt.Sprintf("[%d bytes]", len(x))
	case []*BrokerID:
		if x == nil {
			return "nil"
		}
		parts := make([]string, len(x))
		for i, id := range x {
			parts[i] = formatValue(id)
		}
		return "[" + strings.Join(parts, " ") + "]"
	default:
		return fmt.Sprint(x)
	}
}
