package sourcemap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharederrors "github.com/juanfranblanco/vscode-solidity-sub001/pkg/shared/errors"
)

func TestDecodeInheritsEmptyFields(t *testing.T) {
	entries, err := Decode("0:23:0:-;400:19;;:5::i;1:2:-1:o:1")
	require.NoError(t, err)
	require.Len(t, entries, 5)

	assert.Equal(t, Entry{Start: 0, Length: 23, FileIndex: 0, Jump: JumpRegular}, entries[0])
	assert.Equal(t, Entry{Start: 400, Length: 19, FileIndex: 0, Jump: JumpRegular}, entries[1])
	assert.Equal(t, entries[1], entries[2])
	assert.Equal(t, Entry{Start: 400, Length: 5, FileIndex: 0, Jump: JumpIn}, entries[3])
	assert.Equal(t, Entry{Start: 1, Length: 2, FileIndex: NoSource, Jump: JumpOut, ModifierDepth: 1}, entries[4])
	assert.False(t, entries[4].HasSource())
}

func TestDecodeDefaults(t *testing.T) {
	entries, err := Decode("")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{Start: -1, Length: -1, FileIndex: NoSource, Jump: JumpUnknown}, entries[0])

	entries, err = Decode("5:6")
	require.NoError(t, err)
	assert.Equal(t, NoSource, entries[0].FileIndex)
	assert.Equal(t, JumpUnknown, entries[0].Jump)
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name    string
		mapping string
		field   string
	}{
		{name: "non numeric start", mapping: "0:1:0;x:1:0", field: "start"},
		{name: "non numeric length", mapping: "0:1.5:0", field: "length"},
		{name: "bad file index", mapping: "0:1:a", field: "file index"},
		{name: "unknown jump letter", mapping: "0:1:0:j", field: "jump"},
		{name: "too many fields", mapping: "0:1:0:i:0:9", field: "slot"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.mapping)
			require.Error(t, err)
			assert.True(t, errors.Is(err, sharederrors.ErrMalformedSourceMap))

			var mErr *sharederrors.MalformedSourceMapError
			require.True(t, errors.As(err, &mErr))
			assert.Equal(t, tt.field, mErr.Field)
		})
	}
}

func TestAtIndexScenario(t *testing.T) {
	entry, err := AtIndex(1, "0:23:0;400:19:0")
	require.NoError(t, err)
	assert.Equal(t, 400, entry.Start)
	assert.Equal(t, 19, entry.Length)
	assert.Equal(t, 0, entry.FileIndex)
}

func TestAtIndexFillsFromEarlierSlots(t *testing.T) {
	mapping := "10:20:1:i;;30;::2;:4"
	entry, err := AtIndex(4, mapping)
	require.NoError(t, err)
	assert.Equal(t, Entry{Start: 30, Length: 4, FileIndex: 2, Jump: JumpIn}, entry)
}

func TestAtIndexClampsPastEnd(t *testing.T) {
	entry, err := AtIndex(99, "1:2:0;3:4")
	require.NoError(t, err)
	assert.Equal(t, Entry{Start: 3, Length: 4, FileIndex: 0, Jump: JumpUnknown}, entry)
}

func TestAtIndexIgnoresSlotsAfterIndex(t *testing.T) {
	// The malformed slot lies after the requested index and is never visited.
	entry, err := AtIndex(0, "1:2:0;bad:slot")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Start)
}

func TestAtIndexAgreesWithDecode(t *testing.T) {
	mappings := []string{
		"0:23:0;400:19:0",
		"26:1017:0:-;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;",
		"1:2:0:i;:3;::1;:::o;4;;5:6:-1:-:2;;:::i:0",
		"",
		";;;",
		"7:8:1;9:10;11:12:0:o;13::::3;:14",
	}
	for _, m := range mappings {
		all, err := Decode(m)
		require.NoError(t, err, m)
		for i := range all {
			got, err := AtIndex(i, m)
			require.NoError(t, err, m)
			assert.Equalf(t, all[i], got, "mapping %q index %d", m, i)
		}
	}
}

func TestDecodeSingle(t *testing.T) {
	span, err := DecodeSingle("310:23:0")
	require.NoError(t, err)
	assert.Equal(t, Span{Start: 310, Length: 23, FileIndex: 0}, span)
	assert.Equal(t, 333, span.End())
	assert.Equal(t, "310:23:0", span.String())

	span, err = DecodeSingle("5:1")
	require.NoError(t, err)
	assert.Equal(t, NoSource, span.FileIndex)

	_, err = DecodeSingle("5")
	assert.True(t, errors.Is(err, sharederrors.ErrMalformedSourceMap))
	_, err = DecodeSingle("a:1:0")
	assert.True(t, errors.Is(err, sharederrors.ErrMalformedSourceMap))
}

func TestSpanContains(t *testing.T) {
	outer := Span{Start: 10, Length: 20}
	assert.True(t, outer.Contains(Span{Start: 10, Length: 20}))
	assert.True(t, outer.Contains(Span{Start: 15, Length: 2}))
	assert.False(t, outer.Contains(Span{Start: 9, Length: 2}))
	assert.False(t, outer.Contains(Span{Start: 25, Length: 6}))
}

func TestCount(t *testing.T) {
	assert.Equal(t, 1, Count(""))
	assert.Equal(t, 3, Count("1:2;;"))
}
