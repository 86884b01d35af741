package engine

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// EdgeRole describes why a node depends on another one.
type EdgeRole string

const (
	// EdgeOperand links a function argument to its derived node.
	EdgeOperand EdgeRole = "operand"

	// EdgeDiscriminator links the discriminator of a switch.
	EdgeDiscriminator EdgeRole = "discriminator"

	// EdgeBranch links a switch branch, evaluated only when selected.
	EdgeBranch EdgeRole = "branch"

	// EdgeSubject links the subject of a conditioned node.
	EdgeSubject EdgeRole = "subject"

	// EdgeEvidence links an evidence term of a conditioned node.
	EdgeEvidence EdgeRole = "evidence"

	// EdgeReference links a declared variable to its definition.
	EdgeReference EdgeRole = "reference"
)

// Graph is a read-only view of the nodes reachable from a set of roots,
// levelled so that every node sits after all of its dependencies.
type Graph struct {
	// Nodes maps node IDs to their graph nodes.
	Nodes map[NodeID]*GraphNode

	// Edges lists dependency edges (From must be resolved before To).
	Edges []GraphEdge

	// Leaves lists the nodes without dependencies (level 0).
	Leaves []NodeID

	// Levels groups node IDs by topological level.
	Levels [][]NodeID

	// Depth is the number of levels.
	Depth int
}

// GraphNode is one node of a Graph.
type GraphNode struct {
	ID           NodeID
	Label        string
	Kind         string
	Op           string
	Level        int
	Outcomes     int
	Dependencies []NodeID
	Dependents   []NodeID
}

// GraphEdge is a dependency edge of a Graph.
type GraphEdge struct {
	From NodeID
	To   NodeID
	Role EdgeRole
}

// graphBuilder levels the reachable part of a model's arena. The caller must
// hold the model lock.
type graphBuilder struct {
	m *Model

	// reachable lists node IDs in discovery order.
	reachable []NodeID
	inSet     map[NodeID]bool

	// adjacencyList maps node IDs to their dependents
	adjacencyList map[NodeID][]NodeID

	// reverseAdjacencyList maps node IDs to their dependencies
	reverseAdjacencyList map[NodeID][]NodeID

	edges []GraphEdge

	// inDegree tracks the number of incoming edges for each node
	inDegree map[NodeID]int

	// levels maps level to node IDs at that level
	levels [][]NodeID
}

func newGraphBuilder(m *Model) *graphBuilder {
	return &graphBuilder{
		m:                    m,
		inSet:                make(map[NodeID]bool),
		adjacencyList:        make(map[NodeID][]NodeID),
		reverseAdjacencyList: make(map[NodeID][]NodeID),
		inDegree:             make(map[NodeID]int),
	}
}

// Graph returns the levelled dependency graph reachable from roots.
func (m *Model) Graph(roots ...Node) (*Graph, error) {
	if len(roots) > 0 {
		sameModel(roots...)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newGraphBuilder(m).build(ids(roots))
}

// build collects the reachable nodes, rejects cycles and computes levels.
func (b *graphBuilder) build(roots []NodeID) (*Graph, error) {
	b.collect(roots)

	if err := b.detectCycles(); err != nil {
		return nil, err
	}

	if err := b.computeLevels(); err != nil {
		return nil, err
	}

	return b.buildGraph(), nil
}

// dependencies returns the direct dependencies of a node with their roles.
func (b *graphBuilder) dependencies(n *node) []GraphEdge {
	var deps []GraphEdge
	switch n.kind {
	case kindFunc:
		for _, op := range n.operands {
			deps = append(deps, GraphEdge{From: op, To: n.id, Role: EdgeOperand})
		}
	case kindSwitch:
		deps = append(deps, GraphEdge{From: n.operands[0], To: n.id, Role: EdgeDiscriminator})
		branches := make([]NodeID, 0, len(n.cases)+1)
		for _, id := range n.cases {
			branches = append(branches, id)
		}
		if n.defaultID != noNode {
			branches = append(branches, n.defaultID)
		}
		sort.Slice(branches, func(i, j int) bool { return branches[i] < branches[j] })
		var last NodeID = noNode
		for _, id := range branches {
			if id == last {
				continue
			}
			last = id
			deps = append(deps, GraphEdge{From: id, To: n.id, Role: EdgeBranch})
		}
	case kindGiven:
		deps = append(deps, GraphEdge{From: n.operands[0], To: n.id, Role: EdgeSubject})
		for _, ev := range n.operands[1:] {
			deps = append(deps, GraphEdge{From: ev, To: n.id, Role: EdgeEvidence})
		}
	case kindRef:
		if n.target != noNode {
			deps = append(deps, GraphEdge{From: n.target, To: n.id, Role: EdgeReference})
		}
	}
	return deps
}

// collect walks dependencies from the roots with an explicit stack.
func (b *graphBuilder) collect(roots []NodeID) {
	stack := append([]NodeID(nil), roots...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if b.inSet[id] {
			continue
		}
		b.inSet[id] = true
		b.reachable = append(b.reachable, id)
		if _, ok := b.inDegree[id]; !ok {
			b.inDegree[id] = 0
		}

		for _, e := range b.dependencies(b.m.nodes[id]) {
			b.edges = append(b.edges, e)
			b.adjacencyList[e.From] = append(b.adjacencyList[e.From], e.To)
			b.reverseAdjacencyList[e.To] = append(b.reverseAdjacencyList[e.To], e.From)
			b.inDegree[e.To]++
			if _, ok := b.inDegree[e.From]; !ok {
				b.inDegree[e.From] = 0
			}
			stack = append(stack, e.From)
		}
	}
	sort.Slice(b.reachable, func(i, j int) bool { return b.reachable[i] < b.reachable[j] })
}

// detectCycles uses depth-first search to detect circular dependencies.
func (b *graphBuilder) detectCycles() error {
	visited := make(map[NodeID]bool)
	recStack := make(map[NodeID]bool)

	for _, id := range b.reachable {
		if !visited[id] {
			if cycle := b.detectCyclesUtil(id, visited, recStack, nil); cycle != nil {
				labels := make([]string, len(cycle))
				for i, c := range cycle {
					labels[i] = b.m.labelLocked(c)
				}
				return NewConstructionError(ErrCodeCyclicDependency,
					fmt.Sprintf("circular dependency detected: %s", formatCycle(labels)), nil).
					WithDetail("cycle", labels)
			}
		}
	}

	return nil
}

// detectCyclesUtil performs DFS to detect cycles in the dependency graph.
func (b *graphBuilder) detectCyclesUtil(
	id NodeID,
	visited map[NodeID]bool,
	recStack map[NodeID]bool,
	path []NodeID,
) []NodeID {
	visited[id] = true
	recStack[id] = true
	path = append(path, id)

	for _, dependent := range b.adjacencyList[id] {
		if !visited[dependent] {
			if cycle := b.detectCyclesUtil(dependent, visited, recStack, path); cycle != nil {
				return cycle
			}
		} else if recStack[dependent] {
			for i, p := range path {
				if p == dependent {
					return append(append([]NodeID(nil), path[i:]...), dependent)
				}
			}
		}
	}

	recStack[id] = false
	return nil
}

// computeLevels assigns levels with Kahn's algorithm.
func (b *graphBuilder) computeLevels() error {
	inDegreeCopy := make(map[NodeID]int, len(b.inDegree))
	for id, degree := range b.inDegree {
		inDegreeCopy[id] = degree
	}

	currentLevel := make([]NodeID, 0)
	for _, id := range b.reachable {
		if inDegreeCopy[id] == 0 {
			currentLevel = append(currentLevel, id)
		}
	}

	processedCount := 0
	for len(currentLevel) > 0 {
		b.levels = append(b.levels, currentLevel)
		processedCount += len(currentLevel)

		nextLevel := make([]NodeID, 0)
		for _, id := range currentLevel {
			for _, dependent := range b.adjacencyList[id] {
				inDegreeCopy[dependent]--
				if inDegreeCopy[dependent] == 0 {
					nextLevel = append(nextLevel, dependent)
				}
			}
		}
		sort.Slice(nextLevel, func(i, j int) bool { return nextLevel[i] < nextLevel[j] })
		currentLevel = nextLevel
	}

	// Should never happen if cycle detection worked
	if processedCount != len(b.reachable) {
		return NewConstructionError(ErrCodeInternal, "failed to level all nodes - possible cycle", nil)
	}

	return nil
}

func (b *graphBuilder) buildGraph() *Graph {
	graph := &Graph{
		Nodes:  make(map[NodeID]*GraphNode, len(b.reachable)),
		Edges:  b.edges,
		Leaves: make([]NodeID, 0),
		Levels: b.levels,
		Depth:  len(b.levels),
	}

	for level, ids := range b.levels {
		for _, id := range ids {
			n := b.m.nodes[id]
			graph.Nodes[id] = &GraphNode{
				ID:           id,
				Label:        b.m.labelLocked(id),
				Kind:         n.kind.String(),
				Op:           n.op,
				Level:        level,
				Outcomes:     len(n.entries),
				Dependencies: b.reverseAdjacencyList[id],
				Dependents:   b.adjacencyList[id],
			}
			if level == 0 {
				graph.Leaves = append(graph.Leaves, id)
			}
		}
	}

	return graph
}

// Atomics returns the atomic nodes of the graph in ID order.
func (g *Graph) Atomics() []NodeID {
	var out []NodeID
	for _, id := range g.Leaves {
		if g.Nodes[id].Kind == kindAtomic.String() {
			out = append(out, id)
		}
	}
	return out
}

// WorstCasePaths returns the product of the outcome counts of the distinct
// atomic nodes, an upper bound on the number of enumeration paths.
func (g *Graph) WorstCasePaths() *big.Int {
	total := big.NewInt(1)
	for _, id := range g.Atomics() {
		total.Mul(total, big.NewInt(int64(g.Nodes[id].Outcomes)))
	}
	return total
}

// ToDOT generates a DOT format representation of the graph for visualization.
// The output can be rendered with Graphviz tools.
func (g *Graph) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph Model {\n")
	sb.WriteString("  rankdir=BT;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for level, ids := range g.Levels {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_level_%d {\n", level))
		sb.WriteString(fmt.Sprintf("    label=\"Level %d\";\n", level))
		sb.WriteString("    style=dashed;\n")

		for _, id := range ids {
			n := g.Nodes[id]
			label := fmt.Sprintf("%s\\n%s", n.Label, n.Op)
			if n.Outcomes > 0 {
				label = fmt.Sprintf("%s (%d)", label, n.Outcomes)
			}
			sb.WriteString(fmt.Sprintf("    \"n%d\" [label=\"%s\", fillcolor=\"%s\", style=\"filled,rounded\"];\n",
				id, escapeDOT(label), getKindColor(n.Kind)))
		}

		sb.WriteString("  }\n\n")
	}

	for _, e := range g.Edges {
		sb.WriteString(fmt.Sprintf("  \"n%d\" -> \"n%d\" [label=\"%s\", %s];\n", e.From, e.To, e.Role, getRoleStyle(e.Role)))
	}

	sb.WriteString("}\n")
	return sb.String()
}

// formatCycle formats a cycle path for error messages.
func formatCycle(cycle []string) string {
	if len(cycle) == 0 {
		return ""
	}
	return strings.Join(cycle, " -> ")
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// getKindColor returns a color for visualizing node kinds.
func getKindColor(kind string) string {
	switch kind {
	case "atomic":
		return "lightgreen"
	case "func":
		return "lightblue"
	case "switch":
		return "khaki"
	case "given":
		return "lightcoral"
	case "ref":
		return "lightgray"
	default:
		return "white"
	}
}

// getRoleStyle returns a DOT style string for edge roles.
func getRoleStyle(role EdgeRole) string {
	switch role {
	case EdgeOperand, EdgeSubject:
		return "style=solid, color=black"
	case EdgeDiscriminator:
		return "style=bold, color=black"
	case EdgeBranch:
		return "style=dashed, color=blue"
	case EdgeEvidence:
		return "style=dashed, color=red"
	case EdgeReference:
		return "style=dotted, color=gray"
	default:
		return "style=solid, color=black"
	}
}
