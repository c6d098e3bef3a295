// Package cfg builds the control-flow graph and discovers function
// boundaries from a parsed instruction stream. It follows a three-pass
// leader-set algorithm (find leaders, partition into blocks, compute
// successor edges) operating over parse.Node label targets instead of raw
// branch decoding, plus an added function-discovery pass: function
// boundaries here are something the builder must infer from jal/tail call
// targets, rather than being handed one function's instructions at a time.
package cfg

import (
	"fmt"
	"sort"

	"rva/internal/annotate"
	"rva/internal/diag"
	"rva/internal/parse"
)

// Succ is a control-flow successor edge out of a Block.
type Succ struct {
	Block int
	Cond  string // "" = unconditional, "T" = branch taken, "F" = fallthrough
}

// Block is a maximal straight-line instruction run with one entry point.
// Synthetic FuncExit blocks carry no instructions: Start == End == len(Nodes).
type Block struct {
	ID      int
	Start   int // index into Graph.Nodes, inclusive
	End     int // index into Graph.Nodes, exclusive
	Succs   []Succ
	Preds   []int
	Func    int  // owning Function ID, or -1 for unclaimed/data blocks
	IsEntry bool // is the Entry block of its owning Function
	IsExit  bool // is the synthetic FuncExit block of its owning Function
}

// Function is one discovered function: a reachability closure of blocks
// rooted at an entry label, plus a synthetic unified exit block that every
// ret in the function funnels into.
type Function struct {
	ID     int
	Name   string
	Entry  int // Block ID
	Exit   int // Block ID, synthetic
	Blocks []int
}

// CallEdge records one call or tail-call site in a side table that
// argument/return inference consumes.
type CallEdge struct {
	CallBlock   int
	CallNode    int // index into Graph.Nodes
	Callee      int // Function ID, or -1 if unresolved (indirect, or unknown label)
	CalleeLabel string
	ReturnBlock int // block resumed after the call, -1 for tail calls
	Tail        bool
}

// Graph is the full per-file CFG: every basic block, every discovered
// function, the call-edge table, and the structural diagnostics the
// builder itself raised (multiple owners, orphan returns, unconventional
// entries, unreachable blocks).
type Graph struct {
	Nodes  []parse.Node
	Blocks []Block
	Funcs  []Function
	Calls  []CallEdge
	Diags  []diag.Diagnostic

	nodeBlock []int // Nodes index -> Block ID
}

// BlockOf returns the Block ID owning Nodes index i.
func (g *Graph) BlockOf(i int) int {
	if i < 0 || i >= len(g.nodeBlock) {
		return -1
	}
	return g.nodeBlock[i]
}

// Build constructs the Graph for one parsed translation unit.
func Build(file string, prog *parse.Program) *Graph {
	g := &Graph{Nodes: prog.Nodes}
	if len(g.Nodes) == 0 {
		return g
	}

	infos := make([]annotate.Info, len(g.Nodes))
	for i, n := range g.Nodes {
		infos[i] = annotate.Annotate(n)
	}

	leaders := findLeaders(g.Nodes, infos, prog.Labels)
	buildBlocks(g, leaders)
	wireSuccs(g, infos, prog.Labels)
	computeCallEdges(g, infos, prog.Labels)
	discoverFunctions(g, infos, prog.Labels, file)
	computePreds(g)
	checkStructure(g, infos, file)

	return g
}

// findLeaders computes the set of Nodes indices that begin a new block:
// index 0, any node carrying a source label, the node after a terminator,
// and any resolvable branch/jump/call target.
func findLeaders(nodes []parse.Node, infos []annotate.Info, labels map[string]int) map[int]bool {
	leaders := map[int]bool{0: true}

	for i, n := range nodes {
		if len(n.Labels) > 0 {
			leaders[i] = true
		}
		info := infos[i]
		if !info.Kind.IsTerminator() {
			continue
		}
		if i+1 < len(nodes) {
			leaders[i+1] = true
		}
		if info.Target == "" {
			continue
		}
		if idx, ok := labels[info.Target]; ok {
			leaders[idx] = true
		}
	}
	return leaders
}

func buildBlocks(g *Graph, leaders map[int]bool) {
	sorted := make([]int, 0, len(leaders))
	for idx := range leaders {
		sorted = append(sorted, idx)
	}
	sort.Ints(sorted)

	g.Blocks = make([]Block, len(sorted))
	g.nodeBlock = make([]int, len(g.Nodes))
	for i, start := range sorted {
		end := len(g.Nodes)
		if i+1 < len(sorted) {
			end = sorted[i+1]
		}
		g.Blocks[i] = Block{ID: i, Start: start, End: end, Func: -1}
		for j := start; j < end; j++ {
			g.nodeBlock[j] = i
		}
	}
}

// wireSuccs computes each block's successor edges from its last
// instruction's control-flow kind. Calls are treated as opaque and fall
// through to the next block, since execution resumes there; the call
// itself is recorded separately in Graph.Calls. An ecall/ebreak whose
// next instruction carries a call or tail-call target label does not fall
// through into that function's entry.
func wireSuccs(g *Graph, infos []annotate.Info, labels map[string]int) {
	leaderToBlock := make(map[int]int, len(g.Blocks))
	for _, b := range g.Blocks {
		leaderToBlock[b.Start] = b.ID
	}
	callTargets := map[string]bool{}
	for _, info := range infos {
		if info.Kind == annotate.Call || info.Kind == annotate.TailCall {
			callTargets[info.Target] = true
		}
	}

	for i := range g.Blocks {
		blk := &g.Blocks[i]
		if blk.End <= blk.Start {
			continue
		}
		lastIdx := blk.End - 1
		info := infos[lastIdx]

		switch info.Kind {
		case annotate.Plain, annotate.Call:
			if op := g.Nodes[lastIdx].Op; (op == "ecall" || op == "ebreak") && blk.End < len(g.Nodes) {
				entersFunc := false
				for _, l := range g.Nodes[blk.End].Labels {
					entersFunc = entersFunc || callTargets[l]
				}
				if entersFunc {
					break
				}
			}
			if next, ok := leaderToBlock[blk.End]; ok {
				blk.Succs = append(blk.Succs, Succ{Block: next})
			}

		case annotate.CondBranch:
			if idx, ok := labels[info.Target]; ok {
				if tb, ok := leaderToBlock[idx]; ok {
					blk.Succs = append(blk.Succs, Succ{Block: tb, Cond: "T"})
				}
			}
			if next, ok := leaderToBlock[blk.End]; ok {
				blk.Succs = append(blk.Succs, Succ{Block: next, Cond: "F"})
			}

		case annotate.Jump:
			if idx, ok := labels[info.Target]; ok {
				if tb, ok := leaderToBlock[idx]; ok {
					blk.Succs = append(blk.Succs, Succ{Block: tb})
				}
			}

		case annotate.TailCall, annotate.IndirectJump:
			// No intraprocedural successor: a ret-shape jalr is wired to
			// its function's synthetic exit once function discovery knows
			// which function owns this block; a tail call leaves the
			// function entirely; any other indirect jump has no
			// statically known target.
		}
	}
}

func computeCallEdges(g *Graph, infos []annotate.Info, labels map[string]int) {
	for i, info := range infos {
		if info.Kind != annotate.Call && info.Kind != annotate.TailCall {
			continue
		}
		edge := CallEdge{
			CallBlock:   g.BlockOf(i),
			CallNode:    i,
			Callee:      -1,
			CalleeLabel: info.Target,
			ReturnBlock: -1,
			Tail:        info.Kind == annotate.TailCall,
		}
		if info.Kind == annotate.Call && i+1 < len(g.Nodes) {
			edge.ReturnBlock = g.BlockOf(i + 1)
		}
		// edge.Callee is resolved to a Function ID once discoverFunctions
		// has assigned them; label resolution alone isn't enough here.
		g.Calls = append(g.Calls, edge)
	}
}

// discoverFunctions finds function entry candidates (call/tail-call
// targets, plus "main" if present, or else the label on the first
// instruction), then computes each one's forward
// reachability closure over the block-successor graph. Calls never
// contribute a Block.Succs edge to the callee (wireSuccs treats them as
// opaque fallthrough), so the closure naturally stays intraprocedural; a
// tail call has no successor at all, so it correctly ends the walk rather
// than pulling the callee's blocks into this function.
func discoverFunctions(g *Graph, infos []annotate.Info, labels map[string]int, file string) {
	var candidates []string
	seen := map[string]bool{}
	if _, ok := labels["main"]; ok {
		candidates = append(candidates, "main")
		seen["main"] = true
	} else if len(g.Nodes[0].Labels) > 0 {
		// Without a main, execution starts at the first instruction.
		first := g.Nodes[0].Labels[0]
		candidates = append(candidates, first)
		seen[first] = true
	}
	for _, info := range infos {
		if info.Kind != annotate.Call && info.Kind != annotate.TailCall {
			continue
		}
		if info.Target == "" || seen[info.Target] {
			continue
		}
		if _, ok := labels[info.Target]; !ok {
			continue
		}
		seen[info.Target] = true
		candidates = append(candidates, info.Target)
	}

	origBlockCount := len(g.Blocks)
	owner := make([]int, origBlockCount)
	for i := range owner {
		owner[i] = -1
	}
	labelToFunc := map[string]int{}

	for _, name := range candidates {
		idx := labels[name]
		entryBlock := g.BlockOf(idx)
		fn := Function{ID: len(g.Funcs), Name: name, Entry: entryBlock}
		labelToFunc[name] = fn.ID

		queue := []int{entryBlock}
		visited := map[int]bool{}
		for len(queue) > 0 {
			b := queue[0]
			queue = queue[1:]
			if visited[b] {
				continue
			}
			visited[b] = true

			if owner[b] != -1 && owner[b] != fn.ID {
				g.Diags = append(g.Diags, diag.Diagnostic{
					Range:    blockRange(g, b, file),
					Severity: diag.Error,
					Code:     diag.CodeMultipleOwners,
					Message:  fmt.Sprintf("block is reachable from both %q and %q", g.Funcs[owner[b]].Name, name),
				})
				continue
			}
			if owner[b] == fn.ID {
				continue
			}
			owner[b] = fn.ID
			fn.Blocks = append(fn.Blocks, b)

			for _, s := range g.Blocks[b].Succs {
				queue = append(queue, s.Block)
			}
		}

		exitID := len(g.Blocks)
		g.Blocks = append(g.Blocks, Block{ID: exitID, Start: len(g.Nodes), End: len(g.Nodes), Func: fn.ID, IsExit: true})
		fn.Exit = exitID
		fn.Blocks = append(fn.Blocks, exitID)

		for _, b := range fn.Blocks {
			if b == exitID || g.Blocks[b].End <= g.Blocks[b].Start {
				continue
			}
			last := infos[g.Blocks[b].End-1]
			if last.Kind == annotate.IndirectJump && annotate.IsRetShape(g.Nodes[g.Blocks[b].End-1]) {
				g.Blocks[b].Succs = append(g.Blocks[b].Succs, Succ{Block: exitID})
			}
		}

		g.Funcs = append(g.Funcs, fn)
	}

	for b := range owner {
		g.Blocks[b].Func = owner[b]
	}
	for _, fn := range g.Funcs {
		g.Blocks[fn.Entry].IsEntry = true
		g.Blocks[fn.Exit].Func = fn.ID
	}

	// Patch call-edge callee Function IDs now that ownership is known.
	for i := range g.Calls {
		c := &g.Calls[i]
		idx, ok := labels[c.CalleeLabel]
		if !ok {
			c.Callee = -1
			continue
		}
		if fid, ok := labelToFunc[c.CalleeLabel]; ok {
			c.Callee = fid
		} else {
			b := g.BlockOf(idx)
			c.Callee = g.Blocks[b].Func
		}
	}
}

func computePreds(g *Graph) {
	for i := range g.Blocks {
		for _, s := range g.Blocks[i].Succs {
			g.Blocks[s.Block].Preds = append(g.Blocks[s.Block].Preds, i)
		}
	}
}

// checkStructure raises the remaining structural diagnostics: a ret with
// no owning function (a ret in a block claimed by two functions is not
// reported here; discoverFunctions reports that block as MultipleOwners),
// a function entry also reached
// by ordinary fallthrough rather than only by call, and blocks no
// function's reachability walk ever claimed.
func checkStructure(g *Graph, infos []annotate.Info, file string) {
	for i, n := range g.Nodes {
		if infos[i].Kind != annotate.IndirectJump || !annotate.IsRetShape(n) {
			continue
		}
		b := g.BlockOf(i)
		if g.Blocks[b].Func == -1 {
			g.Diags = append(g.Diags, diag.Diagnostic{
				Range:    n.Range,
				Severity: diag.Error,
				Code:     diag.CodeMismatchedReturn,
				Message:  "ret does not belong to any function",
			})
		}
	}

	for _, fn := range g.Funcs {
		if len(g.Blocks[fn.Entry].Preds) > 0 {
			g.Diags = append(g.Diags, diag.Diagnostic{
				Range:    blockRange(g, fn.Entry, file),
				Severity: diag.Warning,
				Code:     diag.CodeUnconventionalEntry,
				Message:  fmt.Sprintf("function %q is entered by fallthrough, not only by call", fn.Name),
			})
		}
	}

	for i := range g.Blocks {
		b := &g.Blocks[i]
		if b.IsExit || b.Func != -1 || b.End <= b.Start {
			continue
		}
		g.Diags = append(g.Diags, diag.Diagnostic{
			Range:    blockRange(g, i, file),
			Severity: diag.Warning,
			Code:     diag.CodeUnreachableBlock,
			Message:  "block is not reachable from any discovered function",
		})
	}
}

func blockRange(g *Graph, blockID int, file string) parse.Range {
	b := g.Blocks[blockID]
	if b.Start >= len(g.Nodes) {
		return parse.Range{File: file}
	}
	return g.Nodes[b.Start].Range
}
