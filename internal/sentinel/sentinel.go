package sentinel

var _ error = Error("")

// Error is a constant-declarable error. Two values compare equal when their
// text is equal, which is what errors.Is relies on when walking a wrapped
// chain.
type Error string

func (e Error) Error() string {
	return string(e)
}
