// Package netdev models the network-stack side of an adapter: transmit
// queues, carrier state and the asynchronous link-up acknowledgment.
package netdev

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrLinkUpTimeout is returned when the stack never acknowledges carrier-on.
var ErrLinkUpTimeout = errors.New("link-up acknowledgment timed out")

// Status is a point-in-time view of the device.
type Status struct {
	Name       string `json:"name"`
	QueuesOn   bool   `json:"queues_on"`
	Carrier    bool   `json:"carrier"`
	LinkUp     bool   `json:"link_up"`
	PowerSave  bool   `json:"power_save"`
	CarrierOns int    `json:"carrier_ons"`
}

// Device implements ports.NetDevice.
type Device struct {
	name     string
	ackDelay time.Duration
	noAck    bool
	logger   *slog.Logger

	mu      sync.Mutex
	status  Status
	// linkUp is closed once the current carrier-on is acknowledged and
	// replaced on carrier-off.
	linkUp  chan struct{}
	gen     uint64
	// ops holds the last opLimit control calls; nothing is kept when 0.
	ops     []string
	opLimit int
}

// Option configures a Device.
type Option func(*Device)

// WithAckDelay sets how long the stack takes to acknowledge carrier-on.
func WithAckDelay(d time.Duration) Option {
	return func(dev *Device) { dev.ackDelay = d }
}

// WithoutAck makes the device never acknowledge link-up.
func WithoutAck() Option {
	return func(dev *Device) { dev.noAck = true }
}

// WithOpLog keeps the last limit control calls for Ops.
func WithOpLog(limit int) Option {
	return func(dev *Device) { dev.opLimit = limit }
}

// New creates a device with carrier off and queues stopped.
func New(name string, logger *slog.Logger, opts ...Option) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Device{
		name:   name,
		logger: logger.With("component", "netdev", "iface", name),
		linkUp: make(chan struct{}),
		status: Status{Name: name, PowerSave: true},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) StopQueues() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status.QueuesOn = false
	d.record("stop_queues")
}

func (d *Device) StartQueues() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status.QueuesOn = true
	d.record("start_queues")
}

func (d *Device) CarrierOff() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("carrier_off")
	if !d.status.Carrier {
		return
	}
	d.status.Carrier = false
	d.status.LinkUp = false
	d.gen++
	d.linkUp = make(chan struct{})
}

func (d *Device) CarrierOn() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("carrier_on")
	if d.status.Carrier {
		return
	}
	d.status.Carrier = true
	d.status.CarrierOns++
	if d.noAck {
		return
	}

	gen, ch := d.gen, d.linkUp
	go func() {
		if d.ackDelay > 0 {
			time.Sleep(d.ackDelay)
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.gen != gen {
			return
		}
		d.status.LinkUp = true
		close(ch)
	}()
}

// WaitLinkUp blocks until the current carrier-on is acknowledged.
func (d *Device) WaitLinkUp(ctx context.Context) error {
	d.mu.Lock()
	ch := d.linkUp
	d.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w: %v", d.name, ErrLinkUpTimeout, ctx.Err())
	}
}

func (d *Device) SetPowerSave(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status.PowerSave != enabled {
		d.logger.Info("power save", "enabled", enabled)
	}
	d.status.PowerSave = enabled
	d.record(fmt.Sprintf("power_save=%t", enabled))
}

// record appends op to the log. The caller holds d.mu.
func (d *Device) record(op string) {
	if d.opLimit <= 0 {
		return
	}
	if len(d.ops) == d.opLimit {
		copy(d.ops, d.ops[1:])
		d.ops = d.ops[:len(d.ops)-1]
	}
	d.ops = append(d.ops, op)
}

// Status returns the current device view.
func (d *Device) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Ops returns the most recent control calls, oldest first. It is empty
// unless the device was created WithOpLog.
func (d *Device) Ops() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.ops))
	copy(out, d.ops)
	return out
}
