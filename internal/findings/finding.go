package findings

import "strings"

// LocationFormat says how Location.SourceMap is to be interpreted.
type LocationFormat string

const (
	// FormatBytecodeOffset locations carry a byte offset into the bytecode as their first field.
	FormatBytecodeOffset LocationFormat = "evm-byzantium-bytecode"
	// FormatInlineSourceMap locations carry "start:length:file" directly.
	FormatInlineSourceMap LocationFormat = "text"
)

// ParseLocationFormat maps the sourceFormat strings used by analysis tools onto a LocationFormat.
// Unknown values are reported as not ok.
func ParseLocationFormat(s string) (LocationFormat, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "evm-byzantium-bytecode", "evm-bytecode", "evm-constantinople-bytecode", "evm-petersburg-bytecode":
		return FormatBytecodeOffset, true
	case "text", "solidity-file", "source":
		return FormatInlineSourceMap, true
	default:
		return "", false
	}
}

// Description is the short and long form of a finding message.
type Description struct {
	Head string `json:"head"`
	Tail string `json:"tail"`
}

// Text joins head and tail with a single space.
func (d Description) Text() string {
	head := strings.TrimSpace(d.Head)
	tail := strings.TrimSpace(d.Tail)
	switch {
	case head == "":
		return tail
	case tail == "":
		return head
	default:
		return head + " " + tail
	}
}

// Location is one place a finding points at, in the format the producing tool declared.
type Location struct {
	SourceMap  string         `json:"sourceMap"`
	Format     LocationFormat `json:"sourceFormat,omitempty"`
	SourceList []string       `json:"sourceList,omitempty"`
}

// Finding is a tool-reported issue before it is mapped onto source.
type Finding struct {
	SWCID       string         `json:"swcID"`
	Title       string         `json:"swcTitle"`
	Severity    string         `json:"severity"`
	Description Description    `json:"description"`
	Locations   []Location     `json:"locations"`
	SourceList  []string       `json:"sourceList,omitempty"`
	Tool        string         `json:"tool,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// RuleID returns the SWC identifier in its canonical "SWC-nnn" form.
func (f Finding) RuleID() string {
	id := strings.TrimSpace(f.SWCID)
	if id == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToUpper(id), "SWC-") {
		return "SWC-" + id[4:]
	}
	return "SWC-" + id
}

// Contract returns the contract name the producing tool attached, if any.
func (f Finding) Contract() string {
	name, _ := f.Extra["contract"].(string)
	return name
}

// ForContract keeps the findings that name contract or name no contract at all.
func ForContract(fs []Finding, contract string) []Finding {
	var out []Finding
	for _, f := range fs {
		if c := f.Contract(); c == "" || c == contract {
			out = append(out, f)
		}
	}
	return out
}

// splitDescription cuts a single description string into head and tail at the first line break,
// or failing that, at the end of the first sentence.
func splitDescription(s string) Description {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return Description{Head: strings.TrimSpace(s[:i]), Tail: strings.TrimSpace(s[i+1:])}
	}
	if i := strings.Index(s, ". "); i >= 0 {
		return Description{Head: s[:i+1], Tail: strings.TrimSpace(s[i+2:])}
	}
	return Description{Head: s}
}
