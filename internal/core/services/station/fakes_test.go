package station

import (
	"context"
	"fmt"
	"sync"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
)

// recorder plays data path, net device and notifier at once so tests can
// assert on the interleaving of calls.
type recorder struct {
	mu         sync.Mutex
	ops        []string
	notes      []domain.Notification
	registered map[int]domain.PeerDescriptor
	deregs     map[int]int
	noAck      bool
	registerFn func(domain.PeerDescriptor) error
}

func newRecorder() *recorder {
	return &recorder{
		registered: make(map[int]domain.PeerDescriptor),
		deregs:     make(map[int]int),
	}
}

func (r *recorder) log(format string, args ...any) {
	r.ops = append(r.ops, fmt.Sprintf(format, args...))
}

func (r *recorder) RegisterPeer(_ context.Context, d domain.PeerDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log("register:%d:%s", d.StationID, d.State)
	if r.registerFn != nil {
		if err := r.registerFn(d); err != nil {
			return err
		}
	}
	if _, ok := r.registered[d.StationID]; ok {
		return fmt.Errorf("id %d in use", d.StationID)
	}
	r.registered[d.StationID] = d
	return nil
}

func (r *recorder) SetPeerState(_ context.Context, id int, st domain.PeerAuthState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log("set_state:%d:%s", id, st)
	d, ok := r.registered[id]
	if !ok {
		return fmt.Errorf("id %d not registered", id)
	}
	d.State = st
	r.registered[id] = d
	return nil
}

func (r *recorder) DeregisterPeer(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log("deregister:%d", id)
	r.deregs[id]++
	delete(r.registered, id)
	return nil
}

func (r *recorder) RegisterBroadcast(_ context.Context, id int, _ domain.HWAddr) error {
	return nil
}

func (r *recorder) DeregisterBroadcast(_ context.Context, id int) error {
	return nil
}

func (r *recorder) StopQueues()  { r.mu.Lock(); r.log("stop_queues"); r.mu.Unlock() }
func (r *recorder) StartQueues() { r.mu.Lock(); r.log("start_queues"); r.mu.Unlock() }
func (r *recorder) CarrierOff()  { r.mu.Lock(); r.log("carrier_off"); r.mu.Unlock() }
func (r *recorder) CarrierOn()   { r.mu.Lock(); r.log("carrier_on"); r.mu.Unlock() }

func (r *recorder) WaitLinkUp(ctx context.Context) error {
	r.mu.Lock()
	r.log("wait_link_up")
	noAck := r.noAck
	r.mu.Unlock()
	if noAck {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (r *recorder) SetPowerSave(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log("power_save:%t", on)
}

func (r *recorder) Notify(_ context.Context, _ string, n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log("notify:%s", n.Kind())
	r.notes = append(r.notes, n)
}

func (r *recorder) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

func (r *recorder) Notes() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification(nil), r.notes...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
	r.notes = nil
}

func indexOf(ops []string, op string) int {
	for i, o := range ops {
		if o == op {
			return i
		}
	}
	return -1
}
