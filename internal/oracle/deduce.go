package oracle

import "fmt"

// DeductionReason says why template argument deduction failed.
type DeductionReason uint8

const (
	DeduceIncomplete DeductionReason = iota
	DeduceTooFewArguments
	DeduceTooManyArguments
	DeduceConflict
	DeduceMismatch
	DeduceNotTemplate
)

// DeductionError is returned by Unit.Deduce.
type DeductionError struct {
	Reason   DeductionReason
	Template string
	Param    string
}

func (e *DeductionError) Error() string {
	switch e.Reason {
	case DeduceIncomplete:
		return fmt.Sprintf("%s: template parameter %s was not deduced", e.Template, e.Param)
	case DeduceTooFewArguments:
		return fmt.Sprintf("%s: too few arguments", e.Template)
	case DeduceTooManyArguments:
		return fmt.Sprintf("%s: too many arguments", e.Template)
	case DeduceConflict:
		return fmt.Sprintf("%s: conflicting deductions for %s", e.Template, e.Param)
	case DeduceNotTemplate:
		return fmt.Sprintf("%s is not a function template", e.Template)
	default:
		return fmt.Sprintf("%s: argument does not match parameter %s", e.Template, e.Param)
	}
}
