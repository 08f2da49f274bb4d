package datastructure

// IdGroup identifies one dense id sequence.
type IdGroup uint8

const (
	VERTEX_IDS IdGroup = iota
	EDGE_IDS
	EDGE_SEGMENT_IDS
	SEGMENT_TYPE_IDS
	ZONE_IDS
	MODE_IDS
	TIME_PERIOD_IDS
	numIdGroups
)

// IdContext hands out dense ids for one network build / assignment run.
// Every builder and registry of a run shares the same context, so two runs never
// share id state.
type IdContext struct {
	next [numIdGroups]Index
}

func NewIdContext() *IdContext {
	return &IdContext{}
}

// Next returns the next free id of group g and reserves it.
func (c *IdContext) Next(g IdGroup) Index {
	id := c.next[g]
	c.next[g]++
	return id
}
