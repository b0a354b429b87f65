package channel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"

	"github.com/arloliu/go-lui/record"
)

// DefaultPipeCapacity is the per-direction queue capacity used when a non-positive capacity is given.
const DefaultPipeCapacity = 64

// PipeEnd is one end of an in-process channel created by NewPipe.
//
// Each direction is a bounded lock-free single-producer single-consumer queue. For KindStatus
// records are delivered through a latest-wins slot instead, so a publisher never blocks on a
// slow reader. Closing either end disconnects both.
type PipeEnd struct {
	kind       Kind
	sendQ      *lfq.SPSC[*record.Record]
	recvQ      *lfq.SPSC[*record.Record]
	sendLatest *atomic.Pointer[record.Record]
	recvLatest *atomic.Pointer[record.Record]
	closed     *atomix.Uint32
}

var _ Channel = (*PipeEnd)(nil)

// pipePair holds both ends, queues, and shared state in a single allocation.
type pipePair struct {
	a       PipeEnd
	b       PipeEnd
	closed  atomix.Uint32
	dataAB  lfq.SPSC[*record.Record]
	dataBA  lfq.SPSC[*record.Record]
	latestA atomic.Pointer[record.Record]
	latestB atomic.Pointer[record.Record]
}

// NewPipe creates a connected pair of channel ends of the given kind.
// client is handed to the control session, controller is driven by the controller side.
func NewPipe(kind Kind, capacity int) (client *PipeEnd, controller *PipeEnd) {
	if capacity <= 0 {
		capacity = DefaultPipeCapacity
	}

	pair := &pipePair{}
	pair.dataAB.Init(capacity)
	pair.dataBA.Init(capacity)

	pair.a = PipeEnd{
		kind:       kind,
		sendQ:      &pair.dataAB,
		recvQ:      &pair.dataBA,
		sendLatest: &pair.latestB,
		recvLatest: &pair.latestA,
		closed:     &pair.closed,
	}
	pair.b = PipeEnd{
		kind:       kind,
		sendQ:      &pair.dataBA,
		recvQ:      &pair.dataAB,
		sendLatest: &pair.latestA,
		recvLatest: &pair.latestB,
		closed:     &pair.closed,
	}

	return &pair.a, &pair.b
}

func (p *PipeEnd) Kind() Kind {
	return p.kind
}

// Send implements Channel.Send.
func (p *PipeEnd) Send(rec *record.Record) error {
	if rec == nil {
		return ErrNilRecord
	}

	if p.isClosed() {
		return ErrDisconnected
	}

	if p.kind.LatestWins() {
		p.sendLatest.Store(rec)
		return nil
	}

	if err := p.sendQ.Enqueue(&rec); err != nil {
		if iox.IsWouldBlock(err) {
			return ErrWouldBlock
		}

		return fmt.Errorf("%w: %w", ErrDisconnected, err)
	}

	return nil
}

// TryReceiveLatest implements Channel.TryReceiveLatest.
func (p *PipeEnd) TryReceiveLatest() (*record.Record, bool, error) {
	var last *record.Record
	for {
		rec, err := p.recvQ.Dequeue()
		if err != nil {
			break
		}
		last = rec
	}

	if rec := p.recvLatest.Swap(nil); rec != nil {
		last = rec
	}

	if last != nil {
		return last, true, nil
	}

	return nil, false, p.closedErr()
}

// TryReceiveNext implements Channel.TryReceiveNext.
func (p *PipeEnd) TryReceiveNext() (*record.Record, bool, error) {
	if rec, err := p.recvQ.Dequeue(); err == nil {
		return rec, true, nil
	}

	if rec := p.recvLatest.Swap(nil); rec != nil {
		return rec, true, nil
	}

	return nil, false, p.closedErr()
}

// Close implements Channel.Close.
func (p *PipeEnd) Close() error {
	p.closed.Add(1)
	return nil
}

func (p *PipeEnd) isClosed() bool {
	return p.closed.Load() != 0
}

func (p *PipeEnd) closedErr() error {
	if p.isClosed() {
		return ErrDisconnected
	}

	return nil
}

// Loopback is an in-process Opener. It creates one Pipe per kind up front and hands out
// the client ends on Open, while the controller ends are available through Controller.
type Loopback struct {
	mu       sync.Mutex
	clients  map[Kind]*PipeEnd
	peers    map[Kind]*PipeEnd
	opened   map[Kind]bool
	failures map[Kind]error
}

var _ Opener = (*Loopback)(nil)

// NewLoopback creates a Loopback whose pipes have the given per-direction capacity.
func NewLoopback(capacity int) *Loopback {
	lb := &Loopback{
		clients:  make(map[Kind]*PipeEnd, len(Kinds)),
		peers:    make(map[Kind]*PipeEnd, len(Kinds)),
		opened:   make(map[Kind]bool, len(Kinds)),
		failures: make(map[Kind]error),
	}

	for _, kind := range Kinds {
		lb.clients[kind], lb.peers[kind] = NewPipe(kind, capacity)
	}

	return lb
}

// Open implements Opener. Each kind can be opened once.
func (lb *Loopback) Open(ctx context.Context, kind Kind) (Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, kind)
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()

	if err, ok := lb.failures[kind]; ok {
		return nil, err
	}

	if lb.opened[kind] {
		return nil, fmt.Errorf("%s channel already opened", kind)
	}
	lb.opened[kind] = true

	return lb.clients[kind], nil
}

// FailOpen makes subsequent Open calls for kind fail with err. A nil err clears the failure.
func (lb *Loopback) FailOpen(kind Kind, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if err == nil {
		delete(lb.failures, kind)
		return
	}
	lb.failures[kind] = err
}

// Peer returns the controller end of the given kind.
func (lb *Loopback) Peer(kind Kind) *PipeEnd {
	return lb.peers[kind]
}

// Controller returns the controller ends of all three channels.
func (lb *Loopback) Controller() Set {
	return Set{
		Command: lb.peers[KindCommand],
		Status:  lb.peers[KindStatus],
		Error:   lb.peers[KindError],
	}
}
