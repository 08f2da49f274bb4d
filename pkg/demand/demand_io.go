package demand

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/util"
	"github.com/dsnet/compress/bzip2"
)

// WriteDemands writes time periods and matrices as bzip2 compressed text. Modes and time periods
// are referenced by external id so the file is independent of id allocation order.
func WriteDemands(filename string, d *Demands, modes *da.Modes) error {
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
	if err := Write(w, d, modes); err != nil {
		return err
	}
	return w.Flush()
}

func Write(w *bufio.Writer, d *Demands, modes *da.Modes) error {
	fmt.Fprintf(w, "zones %d\n", d.numZones)
	fmt.Fprintf(w, "time_periods %d\n", d.timePeriods.Count())
	for _, tp := range d.timePeriods.All() {
		fmt.Fprintf(w, "%s %s %d %d\n", strconv.Quote(tp.externalId), strconv.Quote(tp.description),
			tp.startSeconds, tp.durationSeconds)
	}

	count := 0
	for _, tp := range d.timePeriods.All() {
		count += len(d.ModesOf(tp.id))
	}
	fmt.Fprintf(w, "matrices %d\n", count)
	for _, tp := range d.timePeriods.All() {
		for _, modeId := range d.ModesOf(tp.id) {
			mode := modes.Get(modeId)
			if mode == nil {
				return fmt.Errorf("demands reference unknown mode id %d", modeId)
			}
			fmt.Fprintf(w, "%s %s\n", strconv.Quote(mode.GetExternalId()), strconv.Quote(tp.externalId))
			if err := d.Get(modeId, tp.id).cells.Write(w); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(w, "end\n")
	return err
}

func ReadDemands(filename string, ctx *da.IdContext, modes *da.Modes) (*Demands, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bz, err := bzip2.NewReader(f, nil)
	if err != nil {
		return nil, err
	}
	return Read(bufio.NewReader(bz), ctx, modes)
}

func nextFields(br *bufio.Reader) ([]string, error) {
	line, err := util.ReadLine(br)
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("demand file: unexpected end of file")
		}
		return nil, err
	}
	return splitQuoted(line)
}

func splitQuoted(line string) ([]string, error) {
	tokens := make([]string, 0, 4)
	rest := strings.TrimSpace(line)
	for rest != "" {
		if rest[0] == '"' {
			prefix, err := strconv.QuotedPrefix(rest)
			if err != nil {
				return nil, fmt.Errorf("demand file: bad quoted field in %q", line)
			}
			unquoted, _ := strconv.Unquote(prefix)
			tokens = append(tokens, unquoted)
			rest = strings.TrimSpace(rest[len(prefix):])
			continue
		}
		token, remainder, _ := strings.Cut(rest, " ")
		tokens = append(tokens, token)
		rest = strings.TrimSpace(remainder)
	}
	return tokens, nil
}

func header(br *bufio.Reader, name string) (int, error) {
	tokens, err := nextFields(br)
	if err != nil {
		return 0, err
	}
	if len(tokens) != 2 || tokens[0] != name {
		return 0, fmt.Errorf("demand file: expected section %q", name)
	}
	return strconv.Atoi(tokens[1])
}

// Read parses the text written by Write. Time periods get ids from ctx.
func Read(br *bufio.Reader, ctx *da.IdContext, modes *da.Modes) (*Demands, error) {
	numZones, err := header(br, "zones")
	if err != nil {
		return nil, err
	}
	numPeriods, err := header(br, "time_periods")
	if err != nil {
		return nil, err
	}
	timePeriods := NewTimePeriods()
	for i := 0; i < numPeriods; i++ {
		tokens, err := nextFields(br)
		if err != nil {
			return nil, err
		}
		if len(tokens) != 4 {
			return nil, fmt.Errorf("demand file: time period expects 4 fields, got %d", len(tokens))
		}
		start, err := strconv.Atoi(tokens[2])
		if err != nil {
			return nil, fmt.Errorf("demand file: time period %s start: %w", tokens[0], err)
		}
		duration, err := strconv.Atoi(tokens[3])
		if err != nil {
			return nil, fmt.Errorf("demand file: time period %s duration: %w", tokens[0], err)
		}
		if _, err := timePeriods.Register(ctx, tokens[0], tokens[1], start, duration); err != nil {
			return nil, err
		}
	}

	d := NewDemands(numZones, timePeriods)
	numMatrices, err := header(br, "matrices")
	if err != nil {
		return nil, err
	}
	for i := 0; i < numMatrices; i++ {
		tokens, err := nextFields(br)
		if err != nil {
			return nil, err
		}
		if len(tokens) != 2 {
			return nil, fmt.Errorf("demand file: matrix header expects mode and time period")
		}
		mode, ok := modes.GetByExternalId(tokens[0])
		if !ok {
			return nil, fmt.Errorf("demand file: unknown mode %s", tokens[0])
		}
		tp, ok := timePeriods.GetByExternalId(tokens[1])
		if !ok {
			return nil, fmt.Errorf("demand file: unknown time period %s", tokens[1])
		}
		cells, err := da.ReadSparseMatrix[float64](br, 0, exactlyEqual, util.ParseFloat)
		if err != nil {
			return nil, fmt.Errorf("demand file: matrix %s/%s: %w", tokens[0], tokens[1], err)
		}
		if cells.NumberOfRows() != numZones || cells.NumberOfCols() != numZones {
			return nil, fmt.Errorf("demand file: matrix %s/%s is %dx%d, expected %d zones", tokens[0], tokens[1],
				cells.NumberOfRows(), cells.NumberOfCols(), numZones)
		}
		var bad error
		cells.ForEachNonZero(func(row, col int, val float64) {
			if bad == nil && val < 0 {
				bad = fmt.Errorf("%w: (%d,%d) = %v", ErrNegativeDemand, row, col, val)
			}
		})
		if bad != nil {
			return nil, bad
		}
		if err := d.Register(mode.GetID(), tp.GetID(), &ODMatrix{numZones: numZones, cells: cells}); err != nil {
			return nil, err
		}
	}

	tokens, err := nextFields(br)
	if err != nil {
		return nil, err
	}
	if len(tokens) != 1 || tokens[0] != "end" {
		return nil, fmt.Errorf("demand file: expected end marker")
	}
	return d, nil
}

// ReadODTriplets reads plain text lines "origin destination demand" (zone external ids) into
// the matrix of one mode and time period.
func ReadODTriplets(r io.Reader, g *da.Graph, od *ODMatrix) error {
	br := bufio.NewReader(r)
	for lineNo := 1; ; lineNo++ {
		line, err := util.ReadLine(br)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		tokens := strings.Fields(line)
		if len(tokens) != 3 {
			return fmt.Errorf("od line %d: expected 3 fields, got %d", lineNo, len(tokens))
		}
		origin, ok := g.GetZoneByExternalId(tokens[0])
		if !ok {
			return fmt.Errorf("od line %d: unknown origin zone %s", lineNo, tokens[0])
		}
		destination, ok := g.GetZoneByExternalId(tokens[1])
		if !ok {
			return fmt.Errorf("od line %d: unknown destination zone %s", lineNo, tokens[1])
		}
		value, err := util.StringToFloat64(tokens[2])
		if err != nil {
			return fmt.Errorf("od line %d: %w", lineNo, err)
		}
		if err := od.Add(origin.GetID(), destination.GetID(), value); err != nil {
			return fmt.Errorf("od line %d: %w", lineNo, err)
		}
	}
}
