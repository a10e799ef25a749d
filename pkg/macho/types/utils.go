package types

import "strconv"

type IntName struct {
	I uint32
	S string
}

func StringName(i uint32, names []IntName, goSyntax bool) string {
	for _, n := range names {
		if n.I == i {
			if goSyntax {
				return "types." + n.S
			}
			return n.S
		}
	}
	return strconv.FormatUint(uint64(i), 10)
}

// lookupName is the reverse of StringName.
func lookupName(s string, names []IntName) (uint32, bool) {
	for _, n := range names {
		if n.S == s {
			return n.I, true
		}
	}
	return 0, false
}
