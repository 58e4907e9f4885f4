package world

import (
	"nearbysmelt/internal/protocol"
	"nearbysmelt/internal/sim/visibility"
)

const actionSmeltNearby = "SMELT_NEARBY"

// handleSmeltNearby is the server half of the smelt command. Rejections are
// silent toward the client; only the audit log sees them.
func (w *World) handleSmeltNearby(tick uint64, a *Agent, m protocol.SmeltNearby) {
	entry := AuditEntry{
		Tick:   tick,
		Actor:  a.ID,
		Action: actionSmeltNearby,
		Param:  m.Param,
		Pos:    [3]float64(a.Pose.Pos),
		Yaw:    a.Pose.Yaw,
		Pitch:  a.Pose.Pitch,
	}
	entry.Outcome = w.smeltOutcome(a, m.Param, &entry)
	w.audit(entry)
}

func (w *World) smeltOutcome(a *Agent, param string, entry *AuditEntry) string {
	if !a.smeltLimiter.AllowN(w.cfg.Clock(), 1) {
		return protocol.OutcomeRateLimited
	}
	if !visibility.IsVisible(a.Observer(w.cfg.EyeHeight), w.furnaces.Snapshot()) {
		return protocol.OutcomeNotVisible
	}
	if w.smelter == nil {
		return protocol.OutcomeNoRecipe
	}
	input, ok := w.smelter.ResolveInputFor(param, a.Inventory)
	if !ok {
		return protocol.OutcomeNoRecipe
	}
	entry.Input = input.Item
	if !w.smelter.ApplySmelting(a.Inventory, input) {
		return protocol.OutcomeApplyFailed
	}
	return protocol.OutcomeAccepted
}

func (w *World) audit(entry AuditEntry) {
	w.log.Debugw("smelt request", "tick", entry.Tick, "agent_id", entry.Actor, "param", entry.Param, "outcome", entry.Outcome)
	for _, l := range w.auditLoggers {
		if err := l.WriteAudit(entry); err != nil {
			w.log.Warnw("audit log write failed", "err", err)
		}
	}
}
