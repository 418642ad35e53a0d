package core

import (
	"fmt"
	"strings"
)

// Inspect renders the node state for humans.
func (b *Bootstrap) Inspect() string {
	sb := strings.Builder{}
	info := b.StackInfo()
	sb.WriteString(fmt.Sprintf("%s %s (%s)\n", b.cfg.Id, info.State, info.Role))
	sb.WriteString(fmt.Sprintf("  pan %04x version %d\n", info.PanId, info.PanVersion))
	if info.HasParent {
		sb.WriteString(fmt.Sprintf("  parent %s\n", info.Parent))
	}
	if info.Relearning {
		sb.WriteString("  relearning configuration\n")
	}
	if info.Disconnecting {
		sb.WriteString("  disconnecting\n")
	}

	if b.br != nil {
		ai := b.br.auth.Info()
		sb.WriteString(fmt.Sprintf("  supplicants: %d active, %d inactive\n", ai.Active, ai.Inactive))
		sb.WriteString(fmt.Sprintf("  broadcast key %d, hash %s\n", ai.BroadcastIndex, ai.GtkHash))
		for i, l := range ai.GtkLifetimes {
			if l == 0 {
				continue
			}
			sb.WriteString(fmt.Sprintf("   - gtk %d: %s, %ds left\n", i, ai.GtkStatus[i], l))
		}
		return sb.String()
	}

	sb.WriteString("  candidates:\n")
	neigh := b.NeighborInfo()
	if len(neigh) == 0 {
		sb.WriteString("    (none)\n")
	}
	for _, n := range neigh {
		mark := ""
		switch {
		case n.Parent:
			mark = " [parent]"
		case n.Target:
			mark = " [target]"
		}
		sb.WriteString(fmt.Sprintf("   - %s: score=%d rsl=%d etx=%d size=%d cost=%d v=%d age=%ds%s\n",
			n.Addr, n.Score, n.Rsl, n.Etx, n.PanSize, n.RoutingCost, n.Version, n.Age, mark))
	}
	return sb.String()
}
