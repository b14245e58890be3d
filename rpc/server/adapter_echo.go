package server

import (
	"bytes"
)

// NewEchoAdapter creates an adapter that answers every block unchanged
func NewEchoAdapter() IAnsweringAdapter {
	return &echoAdapterImpl{}
}

type echoAdapterImpl struct{}

func (adapter *echoAdapterImpl) Answer(block []byte, _ uint32) ([]byte, error) {
	return bytes.Clone(block), nil
}
