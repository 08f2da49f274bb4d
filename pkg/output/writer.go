package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/TrafficPLANit/PLANit-sub005/pkg/assignment"
	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/dsnet/compress/bzip2"
	"go.uber.org/zap"
)

const (
	LINK_SEGMENTS = "link_segments"
	SKIMS         = "skims"
	PATHS         = "paths"
	CONVERGENCE   = "convergence"
	GEOJSON       = "flows"
)

// Writer persists assignment results of one network into a directory, one file per output type
// and time period.
type Writer struct {
	graph    *da.Graph
	dir      string
	compress bool
	log      *zap.Logger
}

func NewWriter(graph *da.Graph, dir string, compress bool, log *zap.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", dir, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{graph: graph, dir: dir, compress: compress, log: log}, nil
}

// WriteAll writes link segment flows, convergence logs and the geojson flow map of every time
// period, skims and paths when they were recorded, and summary.yaml.
func (w *Writer) WriteAll(res *assignment.AssignmentResult) error {
	for _, tp := range res.TimePeriods {
		name := tp.TimePeriod.GetExternalId()
		if err := w.writeFile(w.fileName(LINK_SEGMENTS, name, true), func(out io.Writer) error {
			return WriteLinkSegments(out, w.graph, tp)
		}); err != nil {
			return err
		}
		if err := w.writeFile(w.fileName(CONVERGENCE, name, false), func(out io.Writer) error {
			return WriteConvergenceLog(out, tp)
		}); err != nil {
			return err
		}
		if err := w.writeFile(filepath.Join(w.dir, fmt.Sprintf("%s_%s.geojson", GEOJSON, sanitize(name))),
			func(out io.Writer) error {
				return WriteGeoJSON(out, w.graph, tp)
			}); err != nil {
			return err
		}
		if hasSkims(tp) {
			if err := w.writeFile(w.fileName(SKIMS, name, true), func(out io.Writer) error {
				return WriteSkims(out, w.graph, tp)
			}); err != nil {
				return err
			}
		}
		if hasPaths(tp) {
			if err := w.writeFile(w.fileName(PATHS, name, true), func(out io.Writer) error {
				return WritePaths(out, w.graph, tp)
			}); err != nil {
				return err
			}
		}
	}

	summaryFile := filepath.Join(w.dir, "summary.yaml")
	if err := WriteSummary(summaryFile, NewSummary(w.graph, res)); err != nil {
		return err
	}
	w.log.Sugar().Infof("run %s: wrote %d time periods to %s", res.RunId, len(res.TimePeriods), w.dir)
	return nil
}

func (w *Writer) fileName(kind, timePeriod string, compressible bool) string {
	name := fmt.Sprintf("%s_%s.txt", kind, sanitize(timePeriod))
	if compressible && w.compress {
		name += ".bz2"
	}
	return filepath.Join(w.dir, name)
}

// writeFile creates filename and hands write a buffered writer, bzip2 compressed when the name
// ends with .bz2.
func (w *Writer) writeFile(filename string, write func(out io.Writer) error) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	var (
		sink io.Writer = f
		bz   *bzip2.Writer
	)
	if strings.HasSuffix(filename, ".bz2") {
		bz, err = bzip2.NewWriter(f, &bzip2.WriterConfig{})
		if err != nil {
			return err
		}
		sink = bz
	}

	bw := bufio.NewWriter(sink)
	if err := write(bw); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if bz != nil {
		return bz.Close()
	}
	return nil
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', ':':
			return '_'
		}
		return r
	}, name)
}

func hasSkims(tp *assignment.TimePeriodResult) bool {
	for _, m := range tp.Modes {
		if m.Skims != nil {
			return true
		}
	}
	return false
}

func hasPaths(tp *assignment.TimePeriodResult) bool {
	for _, m := range tp.Modes {
		if m.Paths != nil {
			return true
		}
	}
	return false
}
