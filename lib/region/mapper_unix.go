//go:build unix

package region

import (
	"fmt"
	"golang.org/x/sys/unix"
	"path/filepath"
	"strings"
)

// fileMapper maps regions that live as files inside a shared memory directory
type fileMapper struct {
	dir string
}

// fileMapping is a mapped region file
type fileMapping struct {
	fd   int
	data []byte
}

// NewFileMapper creates a mapper for regions inside dir (usually /dev/shm)
func NewFileMapper(dir string) IMapper {
	return &fileMapper{dir: dir}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see region.IMapper)
// --------------------------------------------------------------------------

func (f *fileMapper) Map(name string, size int) (IMapping, error) {
	// region names come from the legacy client, do not let them escape the directory
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("invalid region name %q", name)
	}
	path := filepath.Join(f.dir, name)

	// Open the existing region, it is created by the legacy client
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if stat.Size < int64(size) {
		unix.Close(fd)
		return nil, fmt.Errorf("%s is %d bytes, need %d", path, stat.Size, size)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	return &fileMapping{fd: fd, data: data}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see region.IMapping)
// --------------------------------------------------------------------------

func (m *fileMapping) Bytes() []byte {
	return m.data
}

func (m *fileMapping) Unmap() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}

func (m *fileMapping) Close() error {
	if m.fd < 0 {
		return nil
	}
	err := unix.Close(m.fd)
	m.fd = -1
	return err
}
