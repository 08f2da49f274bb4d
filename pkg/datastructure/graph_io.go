package datastructure

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/TrafficPLANit/PLANit-sub005/pkg"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/util"
	"github.com/dsnet/compress/bzip2"
)

// WriteGraph writes the network as bzip2 compressed text. Entities are written in id order so
// ReadGraph reproduces every id.
func (g *Graph) WriteGraph(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	bz, err := bzip2.NewWriter(f, &bzip2.WriterConfig{})
	if err != nil {
		return err
	}
	defer bz.Close()

	w := bufio.NewWriter(bz)
	if err := g.Write(w); err != nil {
		return err
	}
	return w.Flush()
}

func (g *Graph) Write(w *bufio.Writer) error {
	modes := g.modes.All()
	fmt.Fprintf(w, "modes %d\n", len(modes))
	for _, m := range modes {
		fmt.Fprintf(w, "%s %s %s %s %d\n", strconv.Quote(m.externalId), strconv.Quote(m.name),
			util.FormatFloat(m.pcu), util.FormatFloat(m.maxSpeed), m.predefined)
	}

	fmt.Fprintf(w, "segment_types %d\n", len(g.segmentTypes))
	for _, t := range g.segmentTypes {
		fmt.Fprintf(w, "%s %s %s %d", strconv.Quote(t.name), util.FormatFloat(t.capacityPerLane),
			util.FormatFloat(t.maxDensityPerLane), len(t.modeProperties))
		for _, m := range modes {
			if p, ok := t.modeProperties[m.id]; ok {
				fmt.Fprintf(w, " %d %s %s", m.id, util.FormatFloat(p.MaxSpeed), util.FormatFloat(p.CriticalSpeed))
			}
		}
		fmt.Fprintf(w, "\n")
	}

	fmt.Fprintf(w, "vertices %d\n", g.NumberOfVertices())
	for _, v := range g.GetVertices() {
		fmt.Fprintf(w, "%s %t %s %s\n", strconv.Quote(v.externalId), v.hasPosition,
			util.FormatFloat(v.lat), util.FormatFloat(v.lon))
	}

	fmt.Fprintf(w, "zones %d\n", len(g.zones))
	for _, z := range g.zones {
		fmt.Fprintf(w, "%s %d\n", strconv.Quote(z.externalId), z.centroid)
	}

	fmt.Fprintf(w, "edges %d\n", len(g.edges))
	for _, e := range g.edges {
		fmt.Fprintf(w, "%s %d %d %s %d %t\n", strconv.Quote(e.externalId), e.vertexA, e.vertexB,
			util.FormatFloat(e.length), e.layer, e.connectoid)
	}

	fmt.Fprintf(w, "segments %d\n", len(g.segments))
	for _, s := range g.segments {
		if s.connectoid {
			fmt.Fprintf(w, "c %d %d %d\n", s.edgeId, s.upstream, uint64(s.allowedModes))
			continue
		}
		fmt.Fprintf(w, "l %d %d %d %d %s %d %d\n", s.edgeId, s.upstream, s.segmentType, s.lanes,
			util.FormatFloat(s.speedLimit), uint64(s.allowedModes), s.highwayType)
	}
	_, err := fmt.Fprintf(w, "end\n")
	return err
}

func fields(s string) []string {
	return strings.Fields(s)
}

func ParseIndex(s string) (Index, error) {
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if u > math.MaxUint32 {
		return 0, fmt.Errorf("value %s overflows uint32", s)
	}
	return Index(u), nil
}

// quotedFields splits a line into fields where a field starting with '"' runs to its closing quote.
func quotedFields(line string) ([]string, error) {
	tokens := make([]string, 0, 8)
	rest := strings.TrimSpace(line)
	for rest != "" {
		if rest[0] == '"' {
			prefix, err := strconv.QuotedPrefix(rest)
			if err != nil {
				return nil, fmt.Errorf("bad quoted field in %q: %w", line, err)
			}
			unquoted, _ := strconv.Unquote(prefix)
			tokens = append(tokens, unquoted)
			rest = strings.TrimSpace(rest[len(prefix):])
			continue
		}
		end := strings.IndexAny(rest, " \t")
		if end < 0 {
			tokens = append(tokens, rest)
			break
		}
		tokens = append(tokens, rest[:end])
		rest = strings.TrimSpace(rest[end:])
	}
	return tokens, nil
}

func ReadGraph(filename string) (*Graph, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	bz, err := bzip2.NewReader(f, nil)
	if err != nil {
		return nil, err
	}

	return Read(bufio.NewReader(bz))
}

type sectionReader struct {
	br   *bufio.Reader
	line int
}

func (r *sectionReader) next() ([]string, error) {
	line, err := util.ReadLine(r.br)
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("network file: unexpected end of file after line %d", r.line)
		}
		return nil, err
	}
	r.line++
	tokens, err := quotedFields(line)
	if err != nil {
		return nil, fmt.Errorf("network file line %d: %w", r.line, err)
	}
	return tokens, nil
}

func (r *sectionReader) header(name string) (int, error) {
	tokens, err := r.next()
	if err != nil {
		return 0, err
	}
	if len(tokens) != 2 || tokens[0] != name {
		return 0, fmt.Errorf("network file line %d: expected section %q", r.line, name)
	}
	return strconv.Atoi(tokens[1])
}

func (r *sectionReader) errorf(format string, a ...interface{}) error {
	return fmt.Errorf("network file line %d: %s", r.line, fmt.Sprintf(format, a...))
}

// Read parses the text written by Write into a fresh graph with its own IdContext.
func Read(br *bufio.Reader) (*Graph, error) {
	r := &sectionReader{br: br}
	ctx := NewIdContext()
	modes := NewModes()

	numModes, err := r.header("modes")
	if err != nil {
		return nil, err
	}
	for i := 0; i < numModes; i++ {
		tokens, err := r.next()
		if err != nil {
			return nil, err
		}
		if len(tokens) != 5 {
			return nil, r.errorf("mode: expected 5 fields, got %d", len(tokens))
		}
		pcu, err := util.ParseFloat(tokens[2])
		if err != nil {
			return nil, r.errorf("mode pcu: %v", err)
		}
		maxSpeed, err := util.ParseFloat(tokens[3])
		if err != nil {
			return nil, r.errorf("mode max speed: %v", err)
		}
		predefined, err := strconv.ParseUint(tokens[4], 10, 8)
		if err != nil {
			return nil, r.errorf("mode type: %v", err)
		}
		if _, err := modes.register(ctx, tokens[0], tokens[1], pcu, maxSpeed, PredefinedModeType(predefined)); err != nil {
			return nil, r.errorf("%v", err)
		}
	}

	b := NewGraphBuilder(ctx, modes)

	numTypes, err := r.header("segment_types")
	if err != nil {
		return nil, err
	}
	for i := 0; i < numTypes; i++ {
		tokens, err := r.next()
		if err != nil {
			return nil, err
		}
		if len(tokens) < 4 {
			return nil, r.errorf("segment type: expected at least 4 fields")
		}
		capacity, err := util.ParseFloat(tokens[1])
		if err != nil {
			return nil, r.errorf("segment type capacity: %v", err)
		}
		density, err := util.ParseFloat(tokens[2])
		if err != nil {
			return nil, r.errorf("segment type density: %v", err)
		}
		numProps, err := strconv.Atoi(tokens[3])
		if err != nil || len(tokens) != 4+3*numProps {
			return nil, r.errorf("segment type %s: bad mode property count", tokens[0])
		}
		props := make(map[Index]ModeProperties, numProps)
		for p := 0; p < numProps; p++ {
			base := 4 + 3*p
			modeId, err := ParseIndex(tokens[base])
			if err != nil {
				return nil, r.errorf("segment type mode id: %v", err)
			}
			maxSpeed, err := util.ParseFloat(tokens[base+1])
			if err != nil {
				return nil, r.errorf("segment type max speed: %v", err)
			}
			criticalSpeed, err := util.ParseFloat(tokens[base+2])
			if err != nil {
				return nil, r.errorf("segment type critical speed: %v", err)
			}
			props[modeId] = ModeProperties{MaxSpeed: maxSpeed, CriticalSpeed: criticalSpeed}
		}
		if _, err := b.AddSegmentType(tokens[0], capacity, density, props); err != nil {
			return nil, r.errorf("%v", err)
		}
	}

	numVertices, err := r.header("vertices")
	if err != nil {
		return nil, err
	}
	for i := 0; i < numVertices; i++ {
		tokens, err := r.next()
		if err != nil {
			return nil, err
		}
		if len(tokens) != 4 {
			return nil, r.errorf("vertex: expected 4 fields, got %d", len(tokens))
		}
		hasPosition, err := strconv.ParseBool(tokens[1])
		if err != nil {
			return nil, r.errorf("vertex position flag: %v", err)
		}
		lat, err := util.ParseFloat(tokens[2])
		if err != nil {
			return nil, r.errorf("vertex lat: %v", err)
		}
		lon, err := util.ParseFloat(tokens[3])
		if err != nil {
			return nil, r.errorf("vertex lon: %v", err)
		}
		if _, err := b.AddVertex(tokens[0], lat, lon, hasPosition); err != nil {
			return nil, r.errorf("%v", err)
		}
	}

	numZones, err := r.header("zones")
	if err != nil {
		return nil, err
	}
	for i := 0; i < numZones; i++ {
		tokens, err := r.next()
		if err != nil {
			return nil, err
		}
		if len(tokens) != 2 {
			return nil, r.errorf("zone: expected 2 fields, got %d", len(tokens))
		}
		centroid, err := ParseIndex(tokens[1])
		if err != nil {
			return nil, r.errorf("zone centroid: %v", err)
		}
		if _, err := b.AddZone(tokens[0], centroid); err != nil {
			return nil, r.errorf("%v", err)
		}
	}

	numEdges, err := r.header("edges")
	if err != nil {
		return nil, err
	}
	for i := 0; i < numEdges; i++ {
		tokens, err := r.next()
		if err != nil {
			return nil, err
		}
		if len(tokens) != 6 {
			return nil, r.errorf("edge: expected 6 fields, got %d", len(tokens))
		}
		a, err := ParseIndex(tokens[1])
		if err != nil {
			return nil, r.errorf("edge vertex: %v", err)
		}
		bv, err := ParseIndex(tokens[2])
		if err != nil {
			return nil, r.errorf("edge vertex: %v", err)
		}
		length, err := util.ParseFloat(tokens[3])
		if err != nil {
			return nil, r.errorf("edge length: %v", err)
		}
		layer, err := strconv.ParseUint(tokens[4], 10, 8)
		if err != nil {
			return nil, r.errorf("edge layer: %v", err)
		}
		connectoid, err := strconv.ParseBool(tokens[5])
		if err != nil {
			return nil, r.errorf("edge connectoid flag: %v", err)
		}
		if _, err := b.addEdge(tokens[0], a, bv, length, uint8(layer), connectoid); err != nil {
			return nil, r.errorf("%v", err)
		}
	}

	numSegments, err := r.header("segments")
	if err != nil {
		return nil, err
	}
	for i := 0; i < numSegments; i++ {
		tokens, err := r.next()
		if err != nil {
			return nil, err
		}
		if err := readSegment(b, tokens); err != nil {
			return nil, r.errorf("segment %d: %v", i, err)
		}
	}

	tokens, err := r.next()
	if err != nil {
		return nil, err
	}
	if len(tokens) != 1 || tokens[0] != "end" {
		return nil, r.errorf("expected end marker")
	}

	return b.Build()
}

func readSegment(b *GraphBuilder, tokens []string) error {
	if len(tokens) < 4 {
		return fmt.Errorf("too few fields")
	}
	edgeId, err := ParseIndex(tokens[1])
	if err != nil {
		return err
	}
	upstream, err := ParseIndex(tokens[2])
	if err != nil {
		return err
	}

	switch tokens[0] {
	case "c":
		allowed, err := strconv.ParseUint(tokens[3], 10, 64)
		if err != nil {
			return err
		}
		_, err = b.addConnectoidSegment(edgeId, upstream, ModeSet(allowed))
		return err
	case "l":
		if len(tokens) != 8 {
			return fmt.Errorf("expected 8 fields, got %d", len(tokens))
		}
		segmentType, err := ParseIndex(tokens[3])
		if err != nil {
			return err
		}
		lanes, err := strconv.ParseUint(tokens[4], 10, 8)
		if err != nil {
			return err
		}
		speedLimit, err := util.ParseFloat(tokens[5])
		if err != nil {
			return err
		}
		allowed, err := strconv.ParseUint(tokens[6], 10, 64)
		if err != nil {
			return err
		}
		hwType, err := strconv.ParseUint(tokens[7], 10, 8)
		if err != nil {
			return err
		}
		_, err = b.AddLinkSegment(edgeId, upstream, segmentType, uint8(lanes), speedLimit, ModeSet(allowed),
			pkg.OsmHighwayType(hwType))
		return err
	default:
		return fmt.Errorf("unknown segment kind %q", tokens[0])
	}
}
