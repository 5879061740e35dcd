//go:build !darwin && !linux && !windows

package hotkey

type unsupportedListener struct{}

// NewListener returns a listener that always fails with ErrUnsupported.
func NewListener() Listener {
	return unsupportedListener{}
}

func (unsupportedListener) Run(<-chan struct{}, Binding, func(bool)) error {
	return ErrUnsupported
}
