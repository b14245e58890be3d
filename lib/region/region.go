package region

import (
	"errors"
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("region")

// RegionSize is the fixed size of a legacy IPC region (0x7F00 data + 0x100 header)
const RegionSize = 0x8000

// ErrResource is returned when a region identifier can not be resolved or mapped
var ErrResource = errors.New("region: resource unavailable")

var (
	remapCounter      = metrics.NewCounter(`ubridge_region_remaps_total`)
	remapErrorCounter = metrics.NewCounter(`ubridge_region_remap_errors_total`)
)

// ID is the opaque identifier a legacy client uses to reference its region
type ID uint32

// --------------------------------------------------------------------------
// Interface Definitions for dependency injection
// --------------------------------------------------------------------------

// INameResolver turns a region identifier into the name of the region
type INameResolver interface {
	ResolveName(id ID) (string, error)
}

// IMapper opens a named region and maps it read/write
type IMapper interface {
	// Map maps at least size bytes of the named region
	Map(name string, size int) (IMapping, error)
}

// IMapping is an established mapping. Unmap and Close are called in this order
// exactly once when the region is released.
type IMapping interface {
	// Bytes returns the mapped memory
	Bytes() []byte
	// Unmap removes the mapping from the address space
	Unmap() error
	// Close releases the underlying handle
	Close() error
}

// ResolverFunc adapts a function to INameResolver
type ResolverFunc func(id ID) (string, error)

func (f ResolverFunc) ResolveName(id ID) (string, error) {
	return f(id)
}

// FormatResolver derives the region name from the identifier with a printf
// format, e.g. "FsasmLib_IPC_%04X"
type FormatResolver struct {
	Format string
}

func (r FormatResolver) ResolveName(id ID) (string, error) {
	if r.Format == "" {
		return "", fmt.Errorf("no region name format configured")
	}
	return fmt.Sprintf(r.Format, uint32(id)), nil
}

// --------------------------------------------------------------------------
// Manager
// --------------------------------------------------------------------------

// Manager is the sole owner of the active region mapping
type Manager struct {
	resolver INameResolver
	mapper   IMapper
	size     int

	active  ID
	name    string
	mapping IMapping
	view    []byte
}

// NewManager creates a manager that maps regions of the given size
func NewManager(resolver INameResolver, mapper IMapper, size int) *Manager {
	if size <= 0 {
		size = RegionSize
	}
	return &Manager{
		resolver: resolver,
		mapper:   mapper,
		size:     size,
	}
}

// Resolve returns a view of the region registered under id. If id is already
// mapped the existing view is returned. Otherwise the current region is released
// before the new one is mapped.
func (m *Manager) Resolve(id ID) ([]byte, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: zero region identifier", ErrResource)
	}

	// Same region: nothing to do
	if m.mapping != nil && m.active == id {
		return m.view, nil
	}

	// Release the old region in full before touching the new one
	if err := m.release(); err != nil {
		Logger.Warningf("failed to release region %s: %v", m.name, err)
	}

	name, err := m.resolver.ResolveName(id)
	if err != nil {
		remapErrorCounter.Inc()
		return nil, fmt.Errorf("%w: resolve identifier 0x%X: %v", ErrResource, uint32(id), err)
	}

	mapping, err := m.mapper.Map(name, m.size)
	if err != nil {
		remapErrorCounter.Inc()
		return nil, fmt.Errorf("%w: map region %q: %v", ErrResource, name, err)
	}

	// Never hand out more than the mapping really covers
	view := mapping.Bytes()
	if len(view) < m.size {
		_ = mapping.Unmap()
		_ = mapping.Close()
		remapErrorCounter.Inc()
		return nil, fmt.Errorf("%w: region %q is %d bytes, expected %d", ErrResource, name, len(view), m.size)
	}

	m.active = id
	m.name = name
	m.mapping = mapping
	m.view = view[:m.size:m.size]
	remapCounter.Inc()

	Logger.Debugf("mapped region %q for identifier 0x%X (%d bytes)", name, uint32(id), m.size)
	return m.view, nil
}

// Active returns the identifier of the mapped region, false if none is mapped
func (m *Manager) Active() (ID, bool) {
	if m.mapping == nil {
		return 0, false
	}
	return m.active, true
}

// Size returns the fixed region size
func (m *Manager) Size() int {
	return m.size
}

// Close releases the active region
func (m *Manager) Close() error {
	return m.release()
}

// release unmaps the active region and then closes its handle. The manager is
// left without a region even if one of the steps fails.
func (m *Manager) release() error {
	if m.mapping == nil {
		return nil
	}

	mapping, name := m.mapping, m.name
	m.active = 0
	m.name = ""
	m.mapping = nil
	m.view = nil

	unmapErr := mapping.Unmap()
	closeErr := mapping.Close()

	Logger.Debugf("released region %q", name)
	return errors.Join(unmapErr, closeErr)
}
