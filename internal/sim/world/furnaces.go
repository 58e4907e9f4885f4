package world

import (
	"nearbysmelt/internal/protocol"
	"nearbysmelt/internal/sim/blockevents"
)

// OnLandmarkAdded hands a placement to the world goroutine. It may be called
// from any goroutine and only waits while the event buffer is full.
func (w *World) OnLandmarkAdded(ev blockevents.Event) {
	w.enqueueLandmark(landmarkReq{ev: ev, isAdd: true})
}

func (w *World) OnLandmarkRemoved(ev blockevents.Event) {
	w.enqueueLandmark(landmarkReq{ev: ev, isAdd: false})
}

func (w *World) enqueueLandmark(req landmarkReq) {
	if req.ev.Canceled {
		return
	}
	select {
	case w.landmarks <- req:
	case <-w.stop:
	}
}

// handleLandmark runs on the world goroutine. Clients hear about
// agent-caused changes right away; the registry itself only changes at the
// start of the next tick.
func (w *World) handleLandmark(req landmarkReq) {
	pos := req.ev.Pos
	if req.isAdd {
		w.deferred.RunLater(func() { w.furnaces.Add(pos) })
	} else {
		w.deferred.RunLater(func() { w.furnaces.Remove(pos) })
	}
	if !req.ev.AgentCaused() {
		return
	}
	w.broadcastLandmark(req.ev.Actor, protocol.LandmarkUpdate{Pos: pos.ToArray(), IsAdd: req.isAdd})
}

func (w *World) broadcastLandmark(actor string, upd protocol.LandmarkUpdate) {
	for id, c := range w.clients {
		w.sendTo(id, c, upd)
	}
	entry := ReplicationEntry{
		Tick:    w.tick.Load(),
		Pos:     upd.Pos,
		IsAdd:   upd.IsAdd,
		Actor:   actor,
		Clients: len(w.clients),
	}
	for _, l := range w.replicationLoggers {
		if err := l.WriteReplication(entry); err != nil {
			w.log.Warnw("replication log write failed", "err", err)
		}
	}
}

// sendTo queues one frame for a client. A client whose queue is full can no
// longer converge, so it is dropped rather than skipped.
func (w *World) sendTo(agentID string, c *clientState, m protocol.Message) {
	b, err := protocol.Encode(m)
	if err != nil {
		w.log.Errorw("encode frame", "kind", m.Kind().String(), "err", err)
		return
	}
	select {
	case c.Out <- b:
	default:
		w.log.Warnw("client out queue full; dropping connection", "agent_id", agentID)
		delete(w.clients, agentID)
		if c.Drop != nil {
			c.Drop(protocol.CloseSlowClient)
		}
	}
}
