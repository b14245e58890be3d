package bridge

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/uBridge/lib/ipc"
	"github.com/ValentinKolb/uBridge/lib/region"
	"github.com/ValentinKolb/uBridge/rpc/common"
	"github.com/VictoriaMetrics/metrics"
	"time"
)

var forwardDuration = metrics.NewHistogram("ubridge_forward_duration_seconds")

// IForwarder sends a block to the answering service and returns the answered bytes
type IForwarder interface {
	Forward(block []byte, tag uint32) ([]byte, error)
}

// IRegionResolver returns a view of the shared region registered under an identifier
type IRegionResolver interface {
	Resolve(id region.ID) ([]byte, error)
}

// Dispatcher turns both notification shapes into one forward-and-overwrite call.
// It is not safe for concurrent use.
type Dispatcher struct {
	forwarder IForwarder
	regions   IRegionResolver
}

// NewDispatcher creates a dispatcher
func NewDispatcher(forwarder IForwarder, regions IRegionResolver) *Dispatcher {
	return &Dispatcher{
		forwarder: forwarder,
		regions:   regions,
	}
}

// Embedded forwards a block supplied by the host. On success the block holds the answer.
// An empty block is an immediate success.
func (d *Dispatcher) Embedded(block []byte, tag uint32) error {
	if len(block) == 0 {
		return nil
	}
	return d.forward("embedded", block, tag)
}

// Referenced forwards the block starting at offset inside the region id. If the records
// can not be framed the whole remaining region is forwarded. Identifier 0 is a no-op.
func (d *Dispatcher) Referenced(id region.ID, offset int64) error {
	if offset < 0 {
		countForward("referenced", "invalid")
		return fmt.Errorf("%w: negative offset %d", ErrInvalidRequest, offset)
	}
	if id == 0 {
		return nil
	}

	view, err := d.regions.Resolve(id)
	if err != nil {
		countForward("referenced", "resource")
		return err
	}
	if offset >= int64(len(view)) {
		countForward("referenced", "invalid")
		return fmt.Errorf("%w: offset 0x%X outside of region (0x%X bytes)", ErrInvalidRequest, offset, len(view))
	}

	rest := view[offset:]
	n, err := ipc.BlockLength(rest)
	if err != nil {
		Logger.Debugf("region 0x%04X offset 0x%X: %v, forwarding remaining %d bytes", uint32(id), offset, err, len(rest))
		n = len(rest)
	}
	return d.forward("referenced", rest[:n], 0)
}

// forward sends block and copies the answer over it once its length is validated
func (d *Dispatcher) forward(shape string, block []byte, tag uint32) error {
	start := time.Now()
	reply, err := d.forwarder.Forward(block, tag)
	forwardDuration.UpdateDuration(start)

	if err != nil {
		countForward(shape, resultOf(err))
		return err
	}
	if len(reply) != len(block) {
		countForward(shape, "contract")
		Logger.Warningf("%s block of %d bytes answered with %d bytes, block left untouched", shape, len(block), len(reply))
		return fmt.Errorf("%w: sent %d bytes, got %d", ErrContractViolation, len(block), len(reply))
	}

	copy(block, reply)
	countForward(shape, "ok")
	return nil
}

func resultOf(err error) string {
	switch {
	case errors.Is(err, common.ErrTimeout):
		return "timeout"
	case errors.Is(err, common.ErrTransport):
		return "transport"
	default:
		return "error"
	}
}

func countForward(shape, result string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`ubridge_forward_total{shape=%q,result=%q}`, shape, result)).Inc()
}
