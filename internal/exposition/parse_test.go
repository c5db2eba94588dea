package exposition

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scrape = `# HELP node_cpu_seconds_total Seconds the CPUs spent in each mode.
# TYPE node_cpu_seconds_total counter
node_cpu_seconds_total{cpu="0",mode="idle"} 750
node_cpu_seconds_total{cpu="0",mode="user"} 200
node_cpu_seconds_total{cpu="0",mode="system"} 50
# TYPE node_memory_MemAvailable_bytes gauge
node_memory_MemAvailable_bytes 2.5e+08
# TYPE node_memory_MemTotal_bytes gauge
node_memory_MemTotal_bytes 1e+09
# TYPE node_filesystem_avail_bytes gauge
node_filesystem_avail_bytes{device="/dev/root",mountpoint="/"} 40
node_filesystem_avail_bytes{device="/dev/data",mountpoint="/data"} 10
# TYPE node_filesystem_size_bytes gauge
node_filesystem_size_bytes{device="/dev/root",mountpoint="/"} 100
node_filesystem_size_bytes{device="/dev/data",mountpoint="/data"} 100
`

func TestParseDerivesPercentages(t *testing.T) {
	usage, err := Parse(strings.NewReader(scrape))
	require.NoError(t, err)

	assert.InDelta(t, 25.0, usage.CPU, 0.001)
	assert.InDelta(t, 75.0, usage.Memory, 0.001)
	assert.InDelta(t, 60.0, usage.Disk, 0.001)
}

func TestDiskFallsBackToAllFilesystems(t *testing.T) {
	body := `node_filesystem_avail_bytes{mountpoint="/data"} 30
node_filesystem_avail_bytes{mountpoint="/var"} 20
node_filesystem_size_bytes{mountpoint="/data"} 100
node_filesystem_size_bytes{mountpoint="/var"} 100
`
	usage, err := Parse(strings.NewReader(body))
	require.NoError(t, err)
	assert.InDelta(t, 75.0, usage.Disk, 0.001)
	assert.Zero(t, usage.CPU)
	assert.Zero(t, usage.Memory)
}

func TestEmptyBodyYieldsZeros(t *testing.T) {
	usage, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, usage.CPU)
	assert.Zero(t, usage.Memory)
	assert.Zero(t, usage.Disk)
}

func TestMalformedBodyFails(t *testing.T) {
	usage, err := Parse(strings.NewReader("this is {not exposition\n"))
	assert.Error(t, err)
	assert.Zero(t, usage.CPU)
}

func TestValuesAreClamped(t *testing.T) {
	body := `node_memory_MemAvailable_bytes -100
node_memory_MemTotal_bytes 100
`
	usage, err := Parse(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 100.0, usage.Memory)
}
