// Package sourcemap decodes the compressed, instruction-indexed source maps emitted by solc.
//
// A map is a ';'-separated list of slots, one per EVM instruction. Each slot holds up to five
// ':'-separated fields: start, length, file index, jump kind and modifier depth. A field left
// empty inherits its value from the previous slot.
package sourcemap

import (
	"strconv"
	"strings"

	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/shared/errors"
)

// NoSource is the file index solc uses for compiler-generated code.
const NoSource = -1

const maxFields = 5

// JumpKind describes how an instruction relates to internal function calls.
type JumpKind int

const (
	JumpUnknown JumpKind = iota
	JumpIn
	JumpOut
	JumpRegular
)

// String returns the letter solc uses for the jump kind.
func (j JumpKind) String() string {
	switch j {
	case JumpIn:
		return "i"
	case JumpOut:
		return "o"
	case JumpRegular:
		return "-"
	default:
		return "?"
	}
}

func parseJump(s string) (JumpKind, bool) {
	switch s {
	case "i":
		return JumpIn, true
	case "o":
		return JumpOut, true
	case "-":
		return JumpRegular, true
	default:
		return JumpUnknown, false
	}
}

// Span is a byte range inside one source file.
type Span struct {
	Start     int
	Length    int
	FileIndex int
}

// End returns the offset one past the last byte of the span.
func (s Span) End() int {
	return s.Start + s.Length
}

// Contains reports whether other lies fully inside s. File indices are not compared.
func (s Span) Contains(other Span) bool {
	return s.Start <= other.Start && s.End() >= other.End()
}

// Valid reports whether the span has a usable start and length.
func (s Span) Valid() bool {
	return s.Start >= 0 && s.Length >= 0
}

// String renders the span in "start:length:file" form.
func (s Span) String() string {
	return strconv.Itoa(s.Start) + ":" + strconv.Itoa(s.Length) + ":" + strconv.Itoa(s.FileIndex)
}

// Entry is one decoded source map slot.
type Entry struct {
	Start         int
	Length        int
	FileIndex     int
	Jump          JumpKind
	ModifierDepth int
}

// initial is the state every map starts from before the first slot is applied.
var initial = Entry{Start: -1, Length: -1, FileIndex: NoSource, Jump: JumpUnknown}

// Span returns the byte range of the entry.
func (e Entry) Span() Span {
	return Span{Start: e.Start, Length: e.Length, FileIndex: e.FileIndex}
}

// HasSource reports whether the entry points at real source text.
func (e Entry) HasSource() bool {
	return e.FileIndex != NoSource && e.Start >= 0 && e.Length >= 0
}

// slotFields holds the raw fields of one slot.
type slotFields struct {
	values [maxFields]string
	count  int
}

func splitSlot(slot string, index int) (slotFields, error) {
	var f slotFields
	if slot == "" {
		return f, nil
	}
	parts := strings.Split(slot, ":")
	if len(parts) > maxFields {
		return f, errors.NewMalformedSourceMapError(index, "slot", slot)
	}
	copy(f.values[:], parts)
	f.count = len(parts)
	return f, nil
}

// apply overlays the non-empty fields of f onto prev.
func (f slotFields) apply(prev Entry, index int) (Entry, error) {
	out := prev
	for i := 0; i < f.count; i++ {
		v := f.values[i]
		if v == "" {
			continue
		}
		if err := setField(&out, i, v, index); err != nil {
			return Entry{}, err
		}
	}
	return out, nil
}

var fieldNames = [maxFields]string{"start", "length", "file index", "jump", "modifier depth"}

func setField(e *Entry, field int, v string, index int) error {
	if field == 3 {
		j, ok := parseJump(v)
		if !ok {
			return errors.NewMalformedSourceMapError(index, fieldNames[field], v)
		}
		e.Jump = j
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return errors.NewMalformedSourceMapError(index, fieldNames[field], v)
	}
	switch field {
	case 0:
		e.Start = n
	case 1:
		e.Length = n
	case 2:
		e.FileIndex = n
	case 4:
		e.ModifierDepth = n
	}
	return nil
}

// Decode expands every slot of a compressed source map.
func Decode(mapping string) ([]Entry, error) {
	slots := strings.Split(mapping, ";")
	out := make([]Entry, 0, len(slots))
	prev := initial
	for i, slot := range slots {
		f, err := splitSlot(slot, i)
		if err != nil {
			return nil, err
		}
		cur, err := f.apply(prev, i)
		if err != nil {
			return nil, err
		}
		out = append(out, cur)
		prev = cur
	}
	return out, nil
}

// Count returns the number of slots in mapping.
func Count(mapping string) int {
	return strings.Count(mapping, ";") + 1
}

// AtIndex resolves the entry for instruction index without expanding the whole map. Only slots
// up to index are visited; fields still missing are filled from the nearest earlier slot that
// sets them. An index past the last slot is clamped to the last slot.
func AtIndex(index int, mapping string) (Entry, error) {
	if index < 0 {
		index = 0
	}

	// Collect slot strings 0..index without splitting the remainder of the map.
	slots := make([]string, 0, index+1)
	rest := mapping
	for len(slots) <= index {
		i := strings.IndexByte(rest, ';')
		if i < 0 {
			slots = append(slots, rest)
			break
		}
		slots = append(slots, rest[:i])
		rest = rest[i+1:]
	}
	index = len(slots) - 1

	out := initial
	var filled [maxFields]bool
	remaining := maxFields
	for k := index; k >= 0 && remaining > 0; k-- {
		f, err := splitSlot(slots[k], k)
		if err != nil {
			return Entry{}, err
		}
		for i := 0; i < f.count; i++ {
			if filled[i] || f.values[i] == "" {
				continue
			}
			if err := setField(&out, i, f.values[i], k); err != nil {
				return Entry{}, err
			}
			filled[i] = true
			remaining--
		}
	}
	return out, nil
}

// DecodeSingle parses a standalone "start:length:file" location as used by text-format findings.
// The file index may be omitted, in which case it is NoSource.
func DecodeSingle(value string) (Span, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Span{}, errors.NewMalformedSourceMapError(0, "location", value)
	}
	span := Span{FileIndex: NoSource}
	var err error
	if span.Start, err = strconv.Atoi(parts[0]); err != nil {
		return Span{}, errors.NewMalformedSourceMapError(0, fieldNames[0], parts[0])
	}
	if span.Length, err = strconv.Atoi(parts[1]); err != nil {
		return Span{}, errors.NewMalformedSourceMapError(0, fieldNames[1], parts[1])
	}
	if len(parts) == 3 && parts[2] != "" {
		if span.FileIndex, err = strconv.Atoi(parts[2]); err != nil {
			return Span{}, errors.NewMalformedSourceMapError(0, fieldNames[2], parts[2])
		}
	}
	return span, nil
}

