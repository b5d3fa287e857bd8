package cli

import (
	"reflect"

	"github.com/charmbracelet/log"

	"github.com/pboyd/fncopy"
)

// runner holds what the scenarios share.
type runner struct {
	copier *fncopy.Copier
	logger *log.Logger
}

func newRunner(logger *log.Logger) (*runner, error) {
	c, err := fncopy.New(fncopy.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return &runner{copier: c, logger: logger}, nil
}

func entryOf(fn any) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// copyFunc copies a whole Go function.
func copyFunc[T any](r *runner, fn T) (T, *fncopy.Function, error) {
	v, copied, err := fncopy.CopyFuncValue(reflect.ValueOf(fn), fncopy.WithLogger(r.logger))
	if err != nil {
		var zero T
		return zero, nil, err
	}
	return v.Interface().(T), copied, nil
}
