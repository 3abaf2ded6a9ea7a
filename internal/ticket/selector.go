package ticket

import (
	"context"

	"github.com/danielolaszy/tasklane/internal/logging"
	"github.com/danielolaszy/tasklane/pkg/models"
)

// Prober checks once whether the protocol bridge can be used.
type Prober interface {
	Probe(ctx context.Context) error
}

// Selector picks the transport for a creation request. Bridge
// availability is fixed when the Selector is built and never re-checked.
type Selector struct {
	bridgeAvailable bool
}

// NewSelector returns a Selector with a known bridge availability.
func NewSelector(bridgeAvailable bool) Selector {
	return Selector{bridgeAvailable: bridgeAvailable}
}

// ProbeSelector probes the bridge once and caches the outcome. A nil
// prober means no bridge is configured.
func ProbeSelector(ctx context.Context, prober Prober) Selector {
	if prober == nil {
		return NewSelector(false)
	}
	if err := prober.Probe(ctx); err != nil {
		logging.Warn("protocol bridge unavailable, advanced mode disabled", "error", err)
		return NewSelector(false)
	}
	return NewSelector(true)
}

// BridgeAvailable reports the cached probe outcome.
func (s Selector) BridgeAvailable() bool {
	return s.bridgeAvailable
}

// Select returns ProtocolBridge for advanced requests when the bridge is
// available and DirectRest for everything else. An advanced request
// without a bridge is an error, never a silent downgrade.
func (s Selector) Select(advanced bool) (models.TransportChoice, error) {
	if !advanced {
		return models.DirectRest, nil
	}
	if !s.bridgeAvailable {
		return models.ProtocolBridge, ErrTransportUnavailable
	}
	return models.ProtocolBridge, nil
}
