// Package radiolink implements a UDP broadcast stand-in for the physical
// radio driver (spec.md §1: "we assume an API that delivers raw frames
// ... the propagation-time and register-level details are explicitly
// out of scope"). It lets a handful of meshrepd processes on the same
// host or LAN form a real mesh for development and integration testing
// without LoRa hardware, following the same read-loop-feeds-a-channel
// shape as the teacher's internal/netio.Receiver.
package radiolink

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/dantte-lp/meshrepd/internal/meshcore"
	"github.com/dantte-lp/meshrepd/internal/radioparam"
)

// maxDatagramSize bounds a single read; a meshrepd packet is small
// (header plus payload, well under 1 KiB in practice).
const maxDatagramSize = 2048

// recvQueueCapacity bounds the buffered channel Run feeds and TryRecv
// drains. A full queue drops the newly read packet rather than
// blocking the socket read loop.
const recvQueueCapacity = 256

// UDPRadio implements core.Radio over a UDP broadcast socket.
type UDPRadio struct {
	conn      *net.UDPConn
	broadcast *net.UDPAddr
	logger    *slog.Logger

	recvQueue chan recvItem
	params    atomic.Pointer[radioparam.Params]

	mu     sync.Mutex
	closed bool
}

type recvItem struct {
	pkt     *meshcore.Packet
	quality meshcore.SignalQuality
}

// New binds a UDP socket on bindAddr (e.g. ":7420") and prepares to
// broadcast to broadcastAddr (e.g. "255.255.255.255:7420", or a
// specific peer's address for point-to-point development setups).
func New(bindAddr, broadcastAddr string, logger *slog.Logger) (*UDPRadio, error) {
	laddr, err := net.ResolveUDPAddr("udp4", bindAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, err
	}
	baddr, err := net.ResolveUDPAddr("udp4", broadcastAddr)
	if err != nil {
		conn.Close()
		return nil, err
	}

	r := &UDPRadio{
		conn:      conn,
		broadcast: baddr,
		logger:    logger.With(slog.String("component", "radiolink")),
		recvQueue: make(chan recvItem, recvQueueCapacity),
	}
	r.params.Store(&radioparam.Params{})
	return r, nil
}

// Run reads datagrams until ctx is cancelled, decoding each into a
// Packet and queuing it for TryRecv. Malformed datagrams are logged and
// dropped (spec.md §7: no panics on untrusted input).
func (r *UDPRadio) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		r.mu.Lock()
		r.closed = true
		r.conn.Close()
		r.mu.Unlock()
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			r.mu.Lock()
			closed := r.closed
			r.mu.Unlock()
			if closed {
				return ctx.Err()
			}
			r.logger.Warn("read failed", "err", err)
			continue
		}

		pkt, ok := meshcore.DecodePacket(buf[:n])
		if !ok {
			r.logger.Debug("dropped malformed datagram", "bytes", n)
			continue
		}

		item := recvItem{pkt: pkt, quality: meshcore.SignalQuality{SNR: 20, RSSI: -40}}
		select {
		case r.recvQueue <- item:
		default:
			r.logger.Warn("recv queue full, dropping packet")
		}
	}
}

// EstAirtimeMillis implements core.Radio/router.AirtimeEstimator. UDP
// has no real airtime cost; a small per-byte estimate keeps the
// router's delay math (spec.md §4.6's tx_delay_factor scaling) doing
// something meaningful in development.
func (r *UDPRadio) EstAirtimeMillis(sizeBytes int) float64 {
	return float64(sizeBytes) * 0.5
}

// Send implements core.Radio.
func (r *UDPRadio) Send(pkt *meshcore.Packet) error {
	_, err := r.conn.WriteToUDP(meshcore.EncodePacket(pkt), r.broadcast)
	return err
}

// TryRecv implements core.Radio.
func (r *UDPRadio) TryRecv() (*meshcore.Packet, meshcore.SignalQuality, bool) {
	select {
	case item := <-r.recvQueue:
		return item.pkt, item.quality, true
	default:
		return nil, meshcore.SignalQuality{}, false
	}
}

// SetParams implements core.Radio. There is no real hardware to
// configure; the values are recorded so admin/status reporting reflects
// what was requested.
func (r *UDPRadio) SetParams(p radioparam.Params) error {
	r.params.Store(&p)
	return nil
}

// Params returns the last SetParams value.
func (r *UDPRadio) Params() radioparam.Params {
	return *r.params.Load()
}
