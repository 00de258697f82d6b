package clip

import (
	"fmt"

	"github.com/sausix/scriptycut/internal/services"
)

// Construction error kinds. Match them with errors.Is.
var (
	// ErrType reports an operand of the wrong kind, such as a nil clip or a
	// non-integer repeat count.
	ErrType = fmt.Errorf("%w: wrong operand type", services.ErrValidation)
	// ErrValue reports an argument outside its allowed domain.
	ErrValue = fmt.Errorf("%w: invalid value", services.ErrValidation)
	// ErrRange reports bounds or durations that do not fit the source.
	ErrRange = fmt.Errorf("%w: out of range", services.ErrValidation)
	// ErrStructure reports an operand lacking a required stream or property.
	ErrStructure = fmt.Errorf("%w: unsupported structure", services.ErrValidation)
	// ErrFlagConfig reports contradictory flag filter options.
	ErrFlagConfig = fmt.Errorf("%w: contradictory flag filter", services.ErrConfiguration)
)

// ConstructionError describes why a node could not be built.
type ConstructionError struct {
	Class  string
	Op     string
	Kind   error
	Detail string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("clip: %s.%s: %s", e.Class, e.Op, e.Detail)
}

func (e *ConstructionError) Unwrap() error { return e.Kind }

func constructionErr(class, op string, kind error, format string, args ...any) error {
	return &ConstructionError{Class: class, Op: op, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
