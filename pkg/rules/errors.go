package rules

import (
	"fmt"
	"strings"
)

// CompileError carries every structural problem found while compiling a
// batch of definitions, so rule authors see all mistakes at once.
type CompileError struct {
	Problems []string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	return fmt.Sprintf("rule compilation failed: %s", strings.Join(e.Problems, "; "))
}
