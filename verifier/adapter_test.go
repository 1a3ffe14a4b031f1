package verifier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/vgate/dataset"
	"github.com/teranos/vgate/errors"
)

const sampleCSV = "column_a,column_b,column_c\n100,hello,world\n200,foo,bar\n150,test,data\n300,more,info\n50,last,row\n"

// TestHelperProcess stands in for the verifier executable. It is only
// active when started by helperAdapter.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "no mode")
		os.Exit(2)
	}

	switch mode := args[1]; mode {
	case "host":
		input := os.Getenv(EnvInput)
		threshold, _ := strconv.ParseInt(os.Getenv(EnvThreshold), 10, 64)
		if !sameDir(filepath.Dir(input), ".") {
			fmt.Fprintln(os.Stderr, "input is not in the working directory")
			os.Exit(2)
		}
		ds, err := dataset.Load(input)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		st, _ := ds.Analyze()
		ok := dataset.WithinThreshold(st.ColumnASum, threshold)
		fmt.Printf("📊 CSV hash: %q\n", ds.Hash())
		fmt.Println("🔐 Receipt verification: PASSED")
		fmt.Printf("  - Column A sum: %d\n", st.ColumnASum)
		fmt.Printf("  - Column A hash: %s\n", dataset.AggregateHash(st.ColumnASum))
		fmt.Printf("  - Entry count: %d\n", st.Parsed)
		if ok {
			fmt.Printf("💼 Business invariant (sum <= %d): PASSED\n", threshold)
			fmt.Println("🎉 SUCCESS: All checks passed!")
			return
		}
		fmt.Printf("💼 Business invariant (sum <= %d): FAILED\n", threshold)
		fmt.Println("❌ FAILURE: Some checks failed!")
		os.Exit(1)
	case "crash":
		fmt.Println("⚡ Generating zkVM proof...")
		fmt.Fprintln(os.Stderr, "guest panicked")
		os.Exit(101)
	case "garbled":
		fmt.Println("Column A sum: lots")
	case "sleep":
		time.Sleep(30 * time.Second)
	case "env":
		fmt.Printf("CSV hash: %s\n", args[2])
		fmt.Printf("Row count: %s\n", os.Getenv(EnvDevMode))
		fmt.Println("SUCCESS: env")
	}
}

func sameDir(a, b string) bool {
	sa, err := os.Stat(a)
	if err != nil {
		return false
	}
	sb, err := os.Stat(b)
	return err == nil && os.SameFile(sa, sb)
}

func helperAdapter(t *testing.T, cfg Config, mode ...string) *Adapter {
	t.Helper()
	cfg.Command = shellquote.Join(os.Args[0], "-test.run=^TestHelperProcess$", "--")
	cfg.Args = append(mode, cfg.Args...)
	cfg.Env = append(cfg.Env, "GO_WANT_HELPER_PROCESS=1")
	a, err := New(cfg)
	require.NoError(t, err)
	return a
}

func TestVerify_Accept(t *testing.T) {
	ds := dataset.New("s.csv", []byte(sampleCSV))
	a := helperAdapter(t, Config{}, "host")

	r, err := a.Verify(context.Background(), ds, 1000)
	require.NoError(t, err)

	assert.True(t, r.Success)
	assert.True(t, r.BusinessRuleSatisfied)
	assert.True(t, r.ProofValid)
	assert.Equal(t, int64(800), r.AggregateValue)
	assert.Equal(t, int64(5), r.RowCount)
	assert.Equal(t, ds.Hash(), r.DatasetHash)
	assert.True(t, r.InputHashMatches)
	assert.Equal(t, ds.Hash(), r.InputHash)
	assert.Equal(t, dataset.AggregateHash(800), r.AggregateHash)
	assert.Empty(t, r.Error)
}

func TestVerify_BusinessRuleFailure(t *testing.T) {
	ds := dataset.New("s.csv", []byte(sampleCSV))
	a := helperAdapter(t, Config{}, "host")

	r, err := a.Verify(context.Background(), ds, 500)
	require.NoError(t, err, "a failed business rule is a report, not an adapter error")

	assert.False(t, r.Success)
	assert.False(t, r.BusinessRuleSatisfied)
	assert.Equal(t, 1, r.ExitCode)
	assert.Equal(t, "FAILURE", r.Terminal)
	assert.Equal(t, int64(800), r.AggregateValue)
}

func TestVerify_CrashWithoutMarker(t *testing.T) {
	a := helperAdapter(t, Config{}, "crash")

	r, err := a.Verify(context.Background(), dataset.New("", []byte(sampleCSV)), 1000)
	require.Error(t, err)
	assert.Nil(t, r)
	assert.True(t, errors.IsAdapterError(err))

	var ae *AdapterError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, OpExit, ae.Op)
	assert.Equal(t, 101, ae.ExitCode)
	assert.Contains(t, err.Error(), "guest panicked")
}

func TestVerify_Garbled(t *testing.T) {
	ds := dataset.New("", []byte(sampleCSV))
	a := helperAdapter(t, Config{}, "garbled")

	r, err := a.Verify(context.Background(), ds, 1000)
	require.NoError(t, err)
	assert.False(t, r.Success)
	assert.Contains(t, r.Error, "malformed aggregate_value")
	assert.Equal(t, ds.Hash(), r.DatasetHash)
	assert.True(t, r.DatasetHashRecomputed)
}

func TestVerify_Timeout(t *testing.T) {
	a := helperAdapter(t, Config{Timeout: 200 * time.Millisecond}, "sleep")

	start := time.Now()
	_, err := a.Verify(context.Background(), dataset.New("", []byte(sampleCSV)), 1000)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.True(t, errors.IsAdapterError(err))
	assert.True(t, errors.Is(err, errors.ErrTimeout))
}

func TestVerify_MissingBinary(t *testing.T) {
	a, err := New(Config{Command: "/nonexistent/vgate-verifier-binary"})
	require.NoError(t, err)

	_, err = a.Verify(context.Background(), dataset.New("", []byte(sampleCSV)), 1000)
	require.Error(t, err)
	assert.True(t, errors.IsAdapterError(err))
	assert.Contains(t, errors.FlattenHints(err), "verifier.command")
}

func TestVerify_ArgsAndEnv(t *testing.T) {
	a := helperAdapter(t, Config{DevMode: true, Args: []string{"{threshold}00"}}, "env")

	r, err := a.Verify(context.Background(), dataset.New("", []byte(sampleCSV)), 42)
	require.NoError(t, err)
	assert.Equal(t, "4200", r.DatasetHash, "placeholders are expanded in args")
	assert.Equal(t, int64(1), r.RowCount, "dev mode is passed through the environment")
}

func TestVerify_WorkdirRemoved(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	a := helperAdapter(t, Config{}, "crash")
	_, _ = a.Verify(context.Background(), dataset.New("", []byte(sampleCSV)), 1000)
	a = helperAdapter(t, Config{}, "host")
	_, _ = a.Verify(context.Background(), dataset.New("", []byte(sampleCSV)), 1000)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestVerify_Concurrent(t *testing.T) {
	for _, exclusive := range []bool{false, true} {
		t.Run(fmt.Sprintf("exclusive=%v", exclusive), func(t *testing.T) {
			a := helperAdapter(t, Config{Exclusive: exclusive}, "host")

			var wg sync.WaitGroup
			var accepted atomic.Int32
			for i := range 4 {
				wg.Add(1)
				go func(threshold int64) {
					defer wg.Done()
					r, err := a.Verify(context.Background(), dataset.New("", []byte(sampleCSV)), threshold)
					if assert.NoError(t, err) && r.Success {
						accepted.Add(1)
					}
				}(int64(600 + 100*i))
			}
			wg.Wait()

			// thresholds 600, 700, 800, 900: only 800 and 900 admit a sum of 800
			assert.Equal(t, int32(2), accepted.Load())
		})
	}
}

func TestNew_EmptyCommand(t *testing.T) {
	_, err := New(Config{Command: "  "})
	require.Error(t, err)
	assert.Contains(t, errors.FlattenHints(err), "build the verifier")

	_, err = New(Config{Command: `"unterminated`})
	assert.Error(t, err)
}
