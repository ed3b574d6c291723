package dispatcher

import (
	"NetSentinel/internal/config"
	"NetSentinel/internal/model"
	"context"
	"fmt"
	"net/netip"

	lru "github.com/hashicorp/golang-lru"
)

// MitigationGate decides whether a flagged flow is severe enough to block its
// source. Sources already blocked are remembered in a bounded cache so the
// mitigation capability is not re-invoked for them.
type MitigationGate struct {
	mitigator      model.Mitigator
	scoreThreshold float64
	minPackets     int
	prefixes       []netip.Prefix
	blocked        *lru.Cache
}

// NewMitigationGate builds the gate from the mitigation settings.
func NewMitigationGate(cfg config.MitigationConfig, m model.Mitigator) (*MitigationGate, error) {
	if m == nil {
		return nil, fmt.Errorf("mitigation gate needs a mitigator")
	}
	prefixes, err := cfg.Prefixes()
	if err != nil {
		return nil, err
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 1024
	}
	blocked, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create mitigation cache: %w", err)
	}
	return &MitigationGate{
		mitigator:      m,
		scoreThreshold: cfg.ScoreThreshold,
		minPackets:     cfg.MinPackets,
		prefixes:       prefixes,
		blocked:        blocked,
	}, nil
}

// Eligible reports whether the flow passes the score, volume and local
// address conditions. All three must hold.
func (g *MitigationGate) Eligible(sf model.ScoredFlow) bool {
	if sf.Class != model.Suspicious || sf.Record == nil {
		return false
	}
	if sf.AttackScore <= g.scoreThreshold || sf.Record.Stats.PacketCount <= g.minPackets {
		return false
	}
	return g.isLocal(sf.Record.Key.SrcIP)
}

func (g *MitigationGate) isLocal(src string) bool {
	addr, err := netip.ParseAddr(src)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range g.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Apply invokes the mitigator for an eligible flow whose source has not been
// blocked yet. It reports whether an attempt was made; a failed attempt is
// returned as a *model.MitigationError and the source stays eligible.
func (g *MitigationGate) Apply(ctx context.Context, sf model.ScoredFlow) (bool, error) {
	if !g.Eligible(sf) {
		return false, nil
	}
	src := sf.Record.Key.SrcIP
	if g.blocked.Contains(src) {
		return false, nil
	}
	if err := g.mitigator.Block(ctx, src); err != nil {
		return true, &model.MitigationError{Source: src, Err: err}
	}
	g.blocked.Add(src, struct{}{})
	return true, nil
}
