//go:build !unix

package region

import (
	"errors"
	"fmt"
)

type unsupportedMapper struct{}

// NewFileMapper returns a mapper that always fails, shared region files are only
// supported on unix systems
func NewFileMapper(dir string) IMapper {
	return unsupportedMapper{}
}

func (unsupportedMapper) Map(name string, _ int) (IMapping, error) {
	return nil, fmt.Errorf("map %q: %w", name, errors.ErrUnsupported)
}
