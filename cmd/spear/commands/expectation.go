package commands

import (
	"strconv"

	"github.com/hkrutzer/spear/reqdesc"
)

// parseExpectation interprets the append command's --expect flag.
func parseExpectation(expect string) reqdesc.Expectation {
	switch expect {
	case "exists":
		return reqdesc.ExpectExists()
	case "empty":
		return reqdesc.ExpectNoStream()
	case "any", "":
		return reqdesc.ExpectAny()
	default:
		rev, err := strconv.ParseUint(expect, 10, 64)
		if err != nil {
			return reqdesc.ExpectAny()
		}
		return reqdesc.ExpectRevision(rev)
	}
}
