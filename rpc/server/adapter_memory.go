package server

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/ValentinKolb/uBridge/lib/ipc"
	"github.com/ValentinKolb/uBridge/rpc/common"
	"sync"
)

// NewMemoryAdapter creates an adapter that emulates a flat offset space of the given
// size (the region size if size <= 0). WRITE records store their payload at their
// offset, READ records get their payload filled from it.
func NewMemoryAdapter(size int) IAnsweringAdapter {
	if size <= 0 {
		size = common.DefaultRegionSize
	}
	return &memoryAdapterImpl{
		memory: make([]byte, size),
	}
}

type memoryAdapterImpl struct {
	mu     sync.Mutex
	memory []byte
}

func (adapter *memoryAdapterImpl) Answer(block []byte, _ uint32) ([]byte, error) {
	adapter.mu.Lock()
	defer adapter.mu.Unlock()

	// answer into a copy, bytes after the terminator are returned as they came
	answer := bytes.Clone(block)

	_, err := ipc.Walk(answer, func(pos int, rec ipc.Record) error {
		switch r := rec.(type) {
		case ipc.ReadRequest:
			span, err := adapter.span(r.Offset, len(r.Payload))
			if err != nil {
				return fmt.Errorf("read record at byte %d: %w", pos, err)
			}
			copy(r.Payload, span)
		case ipc.WriteRequest:
			span, err := adapter.span(r.Offset, len(r.Payload))
			if err != nil {
				return fmt.Errorf("write record at byte %d: %w", pos, err)
			}
			copy(span, r.Payload)
		case ipc.Terminator:
		}
		return nil
	})
	// an unknown tag or a block without terminator ends the walk, records applied
	// so far stay answered. Only truncated records fail the block.
	if errors.Is(err, ipc.ErrUnknownTag) || errors.Is(err, ipc.ErrNoTerminator) {
		Logger.Debugf("memory adapter stopped early: %v", err)
		return answer, nil
	}
	if err != nil {
		return nil, err
	}
	return answer, nil
}

// span returns the memory range [offset, offset+length)
func (adapter *memoryAdapterImpl) span(offset uint32, length int) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(adapter.memory)) {
		return nil, fmt.Errorf("offset 0x%04X+%d outside of 0x%X bytes", offset, length, len(adapter.memory))
	}
	return adapter.memory[offset:end], nil
}
