package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/erain9/matchbook/pkg/core"
)

// Column names
const (
	ColTrader    = "trader"
	ColSide      = "side"
	ColPrice     = "price"
	ColSize      = "size"
	ColType      = "type"
	ColAction    = "action"
	ColOrderID   = "order_id"
	ColTimestamp = "timestamp"
)

var requiredColumns = []string{ColTrader, ColSide, ColPrice, ColSize, ColType}

// ErrMalformedRow wraps every row-level parse failure
var ErrMalformedRow = errors.New("malformed row")

// CSVReader turns a header-driven CSV stream into commands. Order ids
// not given in the input are assigned sequentially from 1, and missing
// timestamps are nanoseconds since the reader was created.
type CSVReader struct {
	r      *csv.Reader
	cols   map[string]int
	nextID uint64
	start  time.Time
	line   int
	now    func() time.Time
}

// NewCSVReader reads the header row and checks the required columns
func NewCSVReader(r io.Reader) (*CSVReader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing required column: %s", name)
		}
	}

	return &CSVReader{
		r:      cr,
		cols:   cols,
		nextID: 1,
		start:  time.Now(),
		line:   1,
		now:    time.Now,
	}, nil
}

// Next returns the next command, or io.EOF at the end of input. Rows
// with an empty required cell are skipped.
func (c *CSVReader) Next() (Command, error) {
	for {
		record, err := c.r.Read()
		if err == io.EOF {
			return Command{}, io.EOF
		}
		c.line++
		if err != nil {
			return Command{}, fmt.Errorf("line %d: %w: %w", c.line, ErrMalformedRow, err)
		}

		cmd, ok, err := c.parse(record)
		if err != nil {
			return Command{}, fmt.Errorf("line %d: %w: %w", c.line, ErrMalformedRow, err)
		}
		if ok {
			cmd.Line = c.line
			return cmd, nil
		}
	}
}

// ReadAll drains the reader
func (c *CSVReader) ReadAll() ([]Command, error) {
	var cmds []Command
	for {
		cmd, err := c.Next()
		if err == io.EOF {
			return cmds, nil
		}
		if err != nil {
			return cmds, err
		}
		cmds = append(cmds, cmd)
	}
}

func (c *CSVReader) cell(record []string, name string) string {
	i, ok := c.cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (c *CSVReader) parse(record []string) (Command, bool, error) {
	action, err := ParseAction(c.cell(record, ColAction))
	if err != nil {
		return Command{}, false, err
	}

	if action == ActionCancel {
		raw := c.cell(record, ColOrderID)
		if raw == "" {
			return Command{}, false, nil
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return Command{}, false, fmt.Errorf("bad order id %q", raw)
		}
		return Command{Action: ActionCancel, OrderID: id}, true, nil
	}

	for _, name := range requiredColumns {
		if c.cell(record, name) == "" {
			return Command{}, false, nil
		}
	}

	side, err := core.ParseSide(c.cell(record, ColSide))
	if err != nil {
		return Command{}, false, err
	}
	if err := ParseOrderType(c.cell(record, ColType)); err != nil {
		return Command{}, false, err
	}

	price, err := core.ParsePrice(c.cell(record, ColPrice))
	if err != nil {
		return Command{}, false, err
	}

	size, err := strconv.ParseUint(c.cell(record, ColSize), 10, 32)
	if err != nil {
		return Command{}, false, fmt.Errorf("size out of range: %q", c.cell(record, ColSize))
	}

	id, err := c.orderID(record)
	if err != nil {
		return Command{}, false, err
	}

	ts, err := c.timestamp(record)
	if err != nil {
		return Command{}, false, err
	}

	order := core.NewLimitOrder(id, ts, c.cell(record, ColTrader), side, price, uint32(size))
	return Command{Action: ActionSubmit, Order: order, OrderID: id}, true, nil
}

func (c *CSVReader) orderID(record []string) (uint64, error) {
	raw := c.cell(record, ColOrderID)
	if raw == "" {
		id := c.nextID
		c.nextID++
		return id, nil
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad order id %q", raw)
	}
	if id >= c.nextID {
		c.nextID = id + 1
	}
	return id, nil
}

func (c *CSVReader) timestamp(record []string) (int64, error) {
	raw := c.cell(record, ColTimestamp)
	if raw == "" {
		return c.now().Sub(c.start).Nanoseconds(), nil
	}

	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad timestamp %q", raw)
	}
	return ts, nil
}
