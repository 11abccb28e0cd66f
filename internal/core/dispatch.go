package core

import (
	"time"

	"github.com/dantte-lp/meshrepd/internal/meshcore"
	"github.com/dantte-lp/meshrepd/internal/request"
)

// envelope offsets for the payload types that carry a destination-hash /
// source-identifier prefix ahead of their inner payload (spec.md §4.10,
// grounded on the ban-list dispatch rule: "TXT_MSG / REQ / RESPONSE /
// PATH: compare the 1-byte source hash at payload[1]", i.e. payload[0]
// is the destination hash and payload[1] the source hash). The radio/
// crypto layer that would normally strip this envelope and resolve the
// sender's full identity before handing the packet to the request layer
// is out of scope (spec.md §1: "we assume an API that delivers raw
// frames"); extractSender performs that resolution here instead.
const (
	envelopeDestHashSize = 1
	envelopeSrcHashSize  = 1
)

// extractSender resolves the authenticated sender of a REQ/TXT_MSG/PATH
// packet from its envelope's source-hash byte and strips the envelope,
// returning the inner payload the request handler expects. Multiple ACL
// records can share a hash byte; this core takes the first non-
// tombstoned match, deferring full MAC-based disambiguation to the
// radio/crypto layer this core assumes (spec.md §1 scope note).
func (c *Core) extractSender(payload []byte) (meshcore.Identity, []byte, bool) {
	if len(payload) < envelopeDestHashSize+envelopeSrcHashSize {
		return meshcore.Identity{}, nil, false
	}
	srcHash := payload[envelopeDestHashSize]
	inner := payload[envelopeDestHashSize+envelopeSrcHashSize:]

	matches := c.acl.SearchByHash(srcHash)
	if len(matches) == 0 {
		return meshcore.Identity{}, nil, false
	}
	return matches[0].Identity, inner, true
}

// extractAnonSender strips an ANON_REQ envelope, which carries the
// sender's full public key inline since the ACL does not yet know this
// identity (fresh login case).
func (c *Core) extractAnonSender(payload []byte) (meshcore.Identity, []byte, bool) {
	if len(payload) < envelopeDestHashSize+meshcore.PubKeySize {
		return meshcore.Identity{}, nil, false
	}
	sender, ok := meshcore.IdentityFromPubKey(payload[envelopeDestHashSize : envelopeDestHashSize+meshcore.PubKeySize])
	if !ok {
		return meshcore.Identity{}, nil, false
	}
	inner := payload[envelopeDestHashSize+meshcore.PubKeySize:]
	return sender, inner, true
}

// handlePacket implements the PacketRouter ingress pipeline (spec.md
// §4.6) followed by RequestHandler dispatch (spec.md §4.7).
func (c *Core) handlePacket(pkt *meshcore.Packet, quality meshcore.SignalQuality, now time.Time) {
	pkt.Quality = quality
	airtime := c.radio.EstAirtimeMillis(pkt.PathLen() + len(pkt.Payload) + 2)
	c.counters.RecordRx(pkt.Route, quality, airtime)
	if c.metrics != nil {
		c.metrics.IncPacketsIn(pkt.PayloadType.String())
	}
	if c.packets != nil {
		_ = c.packets.Append("RX " + pkt.PayloadType.String() + " " + pkt.Route.String())
	}

	if c.router.Dedupe(pkt) {
		c.counters.IncDedupe(pkt.Route)
		if c.metrics != nil {
			c.metrics.DedupeHits.Inc()
		}
		return
	}

	c.router.ClassifyRegion(pkt)
	allowed := c.router.AllowForward(pkt)
	if pkt.Route.IsFlood() && pkt.RegionResolved && pkt.RegionDenied && c.metrics != nil {
		c.metrics.DeniedFlood.Inc()
	}

	switch pkt.PayloadType {
	case meshcore.PayloadAdvert:
		c.handleAdvert(pkt, quality, now)
		c.maybeForward(pkt, allowed, now)

	case meshcore.PayloadAnonReq:
		sender, inner, ok := c.extractAnonSender(pkt.Payload)
		if !ok {
			c.counters.IncRecvError()
			return
		}
		reply, ok := c.handler.HandleAnonRequest(inner, sender, pkt.Route.IsFlood(), now)
		if ok {
			c.enqueueReply(reply, pkt, now)
		}

	case meshcore.PayloadReq:
		sender, inner, ok := c.extractSender(pkt.Payload)
		if !ok {
			c.maybeForward(pkt, allowed, now)
			return
		}
		reply, ok := c.handler.HandleAuthRequest(inner, sender, pkt.Route.IsFlood(), now)
		if ok {
			c.enqueueReply(reply, pkt, now)
		}

	case meshcore.PayloadTxtMsg:
		sender, inner, ok := c.extractSender(pkt.Payload)
		if !ok {
			c.maybeForward(pkt, allowed, now)
			return
		}
		result, ok := c.handler.HandleTxtMsg(inner, sender, pkt.Route.IsFlood(), now)
		if ok {
			c.enqueueReply(result.Reply, pkt, now)
			if result.Ack != nil {
				c.enqueueReply(result.Ack, pkt, now)
			}
		}

	case meshcore.PayloadPath:
		sender, _, ok := c.extractSender(pkt.Payload)
		if !ok || !c.handler.HandlePath(pkt.Path, sender, now) {
			c.maybeForward(pkt, allowed, now)
		}

	case meshcore.PayloadControl:
		reply, ok := c.handler.HandleDiscovery(pkt.Payload, int8(quality.SNR*4), now)
		if ok {
			c.enqueueReply(reply, pkt, now)
		}
		c.maybeForward(pkt, allowed, now)

	default:
		// RESPONSE, ACK, GRP_TXT, GRP_DATA, MULTIPART, RAW_CUSTOM: this
		// core originates no requests of its own and consumes none of
		// these locally, so the only action is the forward decision
		// (spec.md §4.6 step 4: "anything else permitted by
		// allow_forward is scheduled for retransmission").
		c.maybeForward(pkt, allowed, now)
	}
}

// handleAdvert decodes an ADVERT and records direct neighbour
// bookkeeping (spec.md §4.6 step 4: "ADVERT and direct neighbour
// bookkeeping go to C3").
func (c *Core) handleAdvert(pkt *meshcore.Packet, quality meshcore.SignalQuality, now time.Time) {
	advert, ok := meshcore.DecodeAdvert(pkt.Payload)
	if !ok {
		c.counters.IncRecvError()
		return
	}
	snrQ2 := int8(quality.SNR * 4)
	c.neighbours.Put(advert.Identity, advert.Timestamp, snrQ2, now, c.clk.MonotonicMillis())
}

// maybeForward schedules pkt for retransmission when allowed permits it
// (spec.md §4.6: "Retransmit delays").
func (c *Core) maybeForward(pkt *meshcore.Packet, allowed bool, now time.Time) {
	if !allowed {
		return
	}
	var delay float64
	if pkt.Route.IsFlood() {
		delay = c.router.RetransmitDelay(pkt, c.radio)
	} else {
		delay = c.router.DirectRetransmitDelay(pkt, c.radio)
	}
	c.sendQueue.Enqueue(pkt, now.Add(time.Duration(delay)*time.Millisecond))
}

// enqueueReply turns a request.Reply into an outbound packet routed per
// spec.md §4.7's "Reply routing" rule and queues it with the fixed
// server_response_delay (plus a widened jitter window for discovery).
func (c *Core) enqueueReply(reply *request.Reply, original *meshcore.Packet, now time.Time) {
	if reply == nil {
		return
	}

	pkt := &meshcore.Packet{PayloadType: reply.PayloadType, Payload: reply.Payload}

	switch reply.Route {
	case request.RouteFloodPrime:
		pkt.Route = meshcore.RouteFlood
		pkt.Path = primePath(original.Path, c.self)
	case request.RouteDirect:
		pkt.Route = meshcore.RouteDirect
		pkt.Path = reply.Path
	case request.RouteFloodDefault:
		pkt.Route = meshcore.RouteFlood
	case request.RouteZeroHop:
		pkt.Route = meshcore.RouteDirect
	}

	delay := time.Duration(c.cfg.Node.ServerResponseDelayMillis) * time.Millisecond
	if reply.WidenDelay {
		frac := float64(c.rng.Uint32()) / float64(1<<32)
		delay += time.Duration(frac*float64(delay)*4) * time.Nanosecond
	}
	c.sendQueue.Enqueue(pkt, now.Add(delay))
}

// primePath appends this node's hash byte to the requester's flood path
// so the reply teaches them a route back (spec.md §4.7: "return via a
// flood-and-path-prime frame that teaches the requester a path back").
func primePath(requesterPath []byte, self meshcore.Identity) []byte {
	if len(requesterPath) >= meshcore.MaxPathSize {
		return requesterPath
	}
	primed := make([]byte, 0, len(requesterPath)+1)
	primed = append(primed, requesterPath...)
	primed = append(primed, self.HashByte())
	return primed
}
