package datastructure

// ModeConnectivity holds the strongly connected components of the non-centroid part of the
// network for one mode and the condensation DAG between them.
type ModeConnectivity struct {
	g       *Graph
	modeId  Index
	sccs    []Index // scc of each vertex, INVALID_VERTEX_ID for centroids
	condAdj [][]Index
}

// RunKosaraju runs kosaraju's algorithm over the segments mode may use, skipping centroids since
// routes never pass through a zone other than their origin and destination.
func (g *Graph) RunKosaraju(mode *Mode) *ModeConnectivity {
	n := Index(g.NumberOfVertices())
	order := make([]Index, 0, n)
	visited := make([]bool, n)
	for v := Index(0); v < n; v++ {
		if !visited[v] && !g.IsCentroid(v) {
			g.dfs(v, &order, visited, false, mode.id)
		}
	}

	order = reverseIndices(order)

	visited = make([]bool, n)
	sccs := make([]Index, n)
	for v := range sccs {
		sccs[v] = INVALID_VERTEX_ID
	}

	numComponents := Index(0)
	component := make([]Index, 0, 16)
	for _, v := range order {
		if visited[v] {
			continue
		}
		component = component[:0]
		g.dfs(v, &component, visited, true, mode.id)
		for _, u := range component {
			sccs[u] = numComponents
		}
		numComponents++
	}

	condAdj := make([][]Index, numComponents)
	for _, s := range g.segments {
		if !g.traversable(s, mode.id) {
			continue
		}
		from, to := sccs[s.upstream], sccs[s.downstream]
		if from != to {
			condAdj[from] = append(condAdj[from], to)
		}
	}

	return &ModeConnectivity{g: g, modeId: mode.id, sccs: sccs, condAdj: condAdj}
}

func (g *Graph) traversable(s *EdgeSegment, modeId Index) bool {
	return !s.connectoid && s.allowedModes.Contains(modeId) &&
		!g.IsCentroid(s.upstream) && !g.IsCentroid(s.downstream)
}

func (g *Graph) dfs(v Index, output *[]Index, visited []bool, reversed bool, modeId Index) {
	visited[v] = true

	if !reversed {
		g.ForOutSegmentsOf(v, func(s *EdgeSegment) {
			if g.traversable(s, modeId) && !visited[s.downstream] {
				g.dfs(s.downstream, output, visited, reversed, modeId)
			}
		})
	} else {
		g.ForInSegmentsOf(v, func(s *EdgeSegment) {
			if g.traversable(s, modeId) && !visited[s.upstream] {
				g.dfs(s.upstream, output, visited, reversed, modeId)
			}
		})
	}

	*output = append(*output, v)
}

func reverseIndices(arr []Index) []Index {
	for i, j := 0, len(arr)-1; i < j; i, j = i+1, j-1 {
		arr[i], arr[j] = arr[j], arr[i]
	}
	return arr
}

func (mc *ModeConnectivity) NumberOfComponents() int {
	return len(mc.condAdj)
}

func (mc *ModeConnectivity) GetSCC(v Index) Index {
	return mc.sccs[v]
}

// ReachableZones marks every zone that can be reached from origin by this mode.
// The origin itself is always marked.
func (mc *ModeConnectivity) ReachableZones(origin Index) []bool {
	g := mc.g
	reached := make([]bool, len(mc.condAdj))
	stack := make([]Index, 0, 16)
	originCentroid := g.zones[origin].centroid

	g.ForOutSegmentsOf(originCentroid, func(s *EdgeSegment) {
		if !s.allowedModes.Contains(mc.modeId) {
			return
		}
		if c := mc.sccs[s.downstream]; c != INVALID_VERTEX_ID && !reached[c] {
			reached[c] = true
			stack = append(stack, c)
		}
	})

	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range mc.condAdj[c] {
			if !reached[next] {
				reached[next] = true
				stack = append(stack, next)
			}
		}
	}

	zones := make([]bool, len(g.zones))
	zones[origin] = true
	for _, z := range g.zones {
		if z.id == origin {
			continue
		}
		g.ForInSegmentsOf(z.centroid, func(s *EdgeSegment) {
			if !s.allowedModes.Contains(mc.modeId) {
				return
			}
			if s.upstream == originCentroid {
				zones[z.id] = true
				return
			}
			if c := mc.sccs[s.upstream]; c != INVALID_VERTEX_ID && reached[c] {
				zones[z.id] = true
			}
		})
	}
	return zones
}

// ZonePair is an (origin, destination) zone id pair.
type ZonePair struct {
	Origin      Index
	Destination Index
}

// DisconnectedZonePairs lists all ordered zone pairs without a path for this mode.
func (mc *ModeConnectivity) DisconnectedZonePairs() []ZonePair {
	pairs := make([]ZonePair, 0)
	for _, o := range mc.g.zones {
		reachable := mc.ReachableZones(o.id)
		for d, ok := range reachable {
			if !ok {
				pairs = append(pairs, ZonePair{Origin: o.id, Destination: Index(d)})
			}
		}
	}
	return pairs
}
