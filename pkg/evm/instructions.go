// Package evm maps EVM bytecode byte offsets to instruction indices.
//
// Source maps are keyed by instruction index while analysis tools report byte offsets, so the
// two are bridged by scanning the code and skipping the immediate operands of PUSH instructions.
package evm

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/shared/errors"
)

const (
	opPush1  byte = 0x60
	opPush32 byte = 0x7f
)

// linkPlaceholder matches unlinked library references: "__" followed by 38 characters.
// Both the legacy "__Lib.sol:Lib____" and the hashed "__$...$__" forms are 40 characters wide.
var linkPlaceholder = regexp.MustCompile(`__.{38}`)

// IsPush reports whether op is one of PUSH1..PUSH32.
func IsPush(op byte) bool {
	return op >= opPush1 && op <= opPush32
}

// PushWidth returns the number of operand bytes following op, 0 for non-push opcodes.
func PushWidth(op byte) int {
	if !IsPush(op) {
		return 0
	}
	return int(op-opPush1) + 1
}

// DecodeHex converts a hex string, with or without a 0x prefix, into raw bytes. Unlinked library
// placeholders are zero-filled first so that every other byte keeps its offset.
func DecodeHex(code string) ([]byte, error) {
	code = strings.TrimSpace(code)
	code = strings.TrimPrefix(strings.TrimPrefix(code, "0x"), "0X")
	if strings.Contains(code, "__") {
		code = linkPlaceholder.ReplaceAllStringFunc(code, func(s string) string {
			return strings.Repeat("0", len(s))
		})
	}
	if len(code)%2 != 0 {
		return nil, errors.NewInvalidBytecodeError(-1, "odd number of hex digits")
	}
	for i := 0; i < len(code); i++ {
		if !isHexDigit(code[i]) {
			return nil, errors.NewInvalidBytecodeError(i, "non-hex character "+string(code[i]))
		}
	}
	out, err := hex.DecodeString(code)
	if err != nil {
		return nil, errors.NewInvalidBytecodeError(-1, err.Error())
	}
	return out, nil
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// InstructionTable maps the byte offset of each instruction start to its instruction index.
// Offsets inside PUSH operands have no entry.
type InstructionTable struct {
	index   map[int]int
	offsets []int
	size    int
}

// Build decodes bytecode hex and indexes its instructions.
func Build(code string) (*InstructionTable, error) {
	raw, err := DecodeHex(code)
	if err != nil {
		return nil, err
	}
	return BuildFromBytes(raw), nil
}

// BuildFromBytes indexes already decoded bytecode. A PUSH whose operand runs past the end of the
// code still counts as an instruction; scanning stops there.
func BuildFromBytes(code []byte) *InstructionTable {
	t := &InstructionTable{
		index: make(map[int]int, len(code)),
		size:  len(code),
	}
	for pc := 0; pc < len(code); pc++ {
		t.index[pc] = len(t.offsets)
		t.offsets = append(t.offsets, pc)
		pc += PushWidth(code[pc])
	}
	return t
}

// Resolve returns the instruction index starting at byte offset. The second result is false for
// offsets that are out of range or fall inside a PUSH operand.
func (t *InstructionTable) Resolve(offset int) (int, bool) {
	i, ok := t.index[offset]
	return i, ok
}

// Offset returns the byte offset of instruction i.
func (t *InstructionTable) Offset(i int) (int, bool) {
	if i < 0 || i >= len(t.offsets) {
		return 0, false
	}
	return t.offsets[i], true
}

// Offsets returns a copy of the instruction start offsets in index order.
func (t *InstructionTable) Offsets() []int {
	out := make([]int, len(t.offsets))
	copy(out, t.offsets)
	return out
}

// Len returns the number of instructions.
func (t *InstructionTable) Len() int {
	return len(t.offsets)
}

// Size returns the code length in bytes.
func (t *InstructionTable) Size() int {
	return t.size
}
