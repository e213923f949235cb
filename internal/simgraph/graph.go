package simgraph

import (
	"fmt"

	reactorsched "github.com/Depetrol/reactor-sched"
)

// reactionGraph holds every reaction in the synthetic graph, indexed by
// [tick][chain][level][lane], plus a reverse lookup from a reaction to
// the next-level reactions in its own chain and tick, so a worker that
// just ran a reaction knows what to trigger next.
type reactionGraph struct {
	grid     [][][][]*reactorsched.Reaction
	children map[*reactorsched.Reaction][]*reactorsched.Reaction
}

func buildGraph(opts Options) *reactionGraph {
	g := &reactionGraph{
		grid:     make([][][][]*reactorsched.Reaction, opts.Ticks),
		children: make(map[*reactorsched.Reaction][]*reactorsched.Reaction),
	}

	for tick := 0; tick < opts.Ticks; tick++ {
		g.grid[tick] = make([][][]*reactorsched.Reaction, opts.NumChains)
		for chain := 0; chain < opts.NumChains; chain++ {
			chainID := uint64(1) << uint(chain)
			g.grid[tick][chain] = make([][]*reactorsched.Reaction, opts.LevelsPerChain)

			for level := 0; level < opts.LevelsPerChain; level++ {
				lane := make([]*reactorsched.Reaction, opts.ReactionsPerLevel)
				index := packIndex(tick, level)
				for i := 0; i < opts.ReactionsPerLevel; i++ {
					name := fmt.Sprintf("tick%d/chain%d/level%d/lane%d", tick, chain, level, i)
					lane[i] = reactorsched.NewReaction(name, index, chainID)
				}
				g.grid[tick][chain][level] = lane

				if level > 0 {
					prev := g.grid[tick][chain][level-1]
					for i, r := range prev {
						g.children[r] = append(g.children[r], lane[i%len(lane)])
					}
				}
			}
		}
	}

	return g
}

// next returns the reactions r's completion should trigger, if any.
func (g *reactionGraph) next(r *reactorsched.Reaction) ([]*reactorsched.Reaction, bool) {
	kids, ok := g.children[r]
	return kids, ok
}

// packIndex builds the deadline:level priority key a synthetic reaction
// uses: the tick number occupies the high bits as a stand-in deadline, so
// earlier ticks are always strictly higher priority than later ones, and
// the level occupies the low 16 bits as reactorsched.Level expects.
func packIndex(tick, level int) uint64 {
	return uint64(tick)<<16 | uint64(uint16(level))
}
