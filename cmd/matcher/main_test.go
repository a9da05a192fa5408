package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun_CSVReplay(t *testing.T) {
	path := writeFile(t, "orders.csv", `trader,side,price,size,type
A,S,100,2,LO
B,S,100,2,LO
C,B,100,3,LO
D,B,99,4,LO
E,B,99,0,LO
`)

	var out bytes.Buffer
	err := run(context.Background(), []string{"--input.path", path, "--log.level", "error"}, &out, strings.NewReader(""))
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Processed 5 orders (1 rejected, 0 canceled)")
	assert.Contains(t, text, "Total trades: 2, volume: 3")
	assert.Contains(t, text, "ASK")
	assert.Contains(t, text, "BID")
	assert.Contains(t, text, "100.000")
	assert.Contains(t, text, "99.000")
}

func TestRun_Stdin(t *testing.T) {
	in := strings.NewReader("trader,side,price,size,type\nA,B,10,1,LO\nB,S,10,1,LO\n")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"--log.level", "error"}, &out, in))
	assert.Contains(t, out.String(), "Total trades: 1, volume: 1")
}

func TestRun_YAMLScenario(t *testing.T) {
	path := writeFile(t, "scenario.yaml", `
name: cancel
commands:
  - {trader: A, side: BUY, price: "100", quantity: 10}
  - {action: cancel, id: 1}
  - {trader: B, side: SELL, price: "100", quantity: 5}
`)

	var out bytes.Buffer
	err := run(context.Background(), []string{"--input.path", path, "--input.format", "yaml", "--log.level", "error"}, &out, nil)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Processed 2 orders (0 rejected, 1 canceled)")
	assert.Contains(t, out.String(), "Total trades: 0, volume: 0")
}

func TestRun_MalformedInput(t *testing.T) {
	path := writeFile(t, "bad.csv", "trader,side,price,size,type\nA,X,100,1,LO\n")

	err := run(context.Background(), []string{"--input.path", path, "--log.level", "error"}, &bytes.Buffer{}, nil)
	assert.ErrorContains(t, err, "line 2")
}

func TestRun_MissingInput(t *testing.T) {
	err := run(context.Background(), []string{"--input.path", "/nonexistent/orders.csv", "--log.level", "error"}, &bytes.Buffer{}, nil)
	assert.Error(t, err)
}

func TestRun_BadFlag(t *testing.T) {
	err := run(context.Background(), []string{"--no-such-flag"}, &bytes.Buffer{}, nil)
	assert.Error(t, err)
}
