package verifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/vgate/dataset"
	"github.com/teranos/vgate/errors"
)

func stubMemory(t *testing.T, avail uint64) {
	t.Helper()
	orig := availableMemory
	availableMemory = func() (uint64, error) { return avail, nil }
	t.Cleanup(func() { availableMemory = orig })
}

func TestVerify_RefusesLowMemory(t *testing.T) {
	stubMemory(t, 512<<20)
	ds := dataset.New("s.csv", []byte(sampleCSV))

	a := helperAdapter(t, Config{MinAvailableMemory: 16 << 30}, "host")
	_, err := a.Verify(context.Background(), ds, 1000)
	require.Error(t, err)

	var ae *AdapterError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, OpSetup, ae.Op)
	assert.Contains(t, err.Error(), "512 MiB available, 16384 MiB required")
	assert.True(t, errors.IsAdapterError(err))
}

func TestVerify_MemoryCheckSkipped(t *testing.T) {
	stubMemory(t, 512<<20)
	ds := dataset.New("s.csv", []byte(sampleCSV))

	dev := helperAdapter(t, Config{MinAvailableMemory: 16 << 30, DevMode: true}, "host")
	r, err := dev.Verify(context.Background(), ds, 1000)
	require.NoError(t, err)
	assert.True(t, r.Success)

	unset := helperAdapter(t, Config{}, "host")
	_, err = unset.Verify(context.Background(), ds, 1000)
	require.NoError(t, err)
}
