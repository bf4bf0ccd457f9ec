package engine

import "fmt"

// ExecutionOption selects which output surfaces an executor solves.
type ExecutionOption int

const (
	ExecNone ExecutionOption = iota
	ExecSkin
	ExecTongue
	ExecSkinTongue
)

func (o ExecutionOption) String() string {
	switch o {
	case ExecNone:
		return "None"
	case ExecSkin:
		return "Skin"
	case ExecTongue:
		return "Tongue"
	case ExecSkinTongue:
		return "SkinTongue"
	default:
		return fmt.Sprintf("ExecutionOption(%d)", int(o))
	}
}

// SolvesSkin reports whether the option includes the skin surface.
func (o ExecutionOption) SolvesSkin() bool {
	return o == ExecSkin || o == ExecSkinTongue
}

// SolvesTongue reports whether the option includes the tongue surface.
func (o ExecutionOption) SolvesTongue() bool {
	return o == ExecTongue || o == ExecSkinTongue
}

// CanonicalizeOption reduces an execution option spelling to lowercase
// alphanumerics, so "skin_tongue", "SKIN-TONGUE", and "SkinTongue" all
// compare equal.
func CanonicalizeOption(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			out = append(out, c)
		case c >= 'A' && c <= 'Z':
			out = append(out, c+('a'-'A'))
		}
	}
	return string(out)
}

// ParseExecutionOption maps a spelling to its option. The comparison is
// insensitive to case and separators.
func ParseExecutionOption(s string) (ExecutionOption, error) {
	switch CanonicalizeOption(s) {
	case "none", "":
		return ExecNone, nil
	case "skin":
		return ExecSkin, nil
	case "tongue":
		return ExecTongue, nil
	case "skintongue":
		return ExecSkinTongue, nil
	default:
		return ExecNone, fmt.Errorf("engine: unknown execution option %q", s)
	}
}
