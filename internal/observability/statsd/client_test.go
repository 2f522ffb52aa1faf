package statsd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// udpSink binds a local UDP socket and collects datagrams sent to it.
func udpSink(t *testing.T) (addr string, recv func() string) {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn.LocalAddr().String(), func() string {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		buf := make([]byte, 1024)
		n, _, err := conn.ReadFrom(buf)
		require.NoError(t, err)
		return string(buf[:n])
	}
}

func TestClientEmitsMetrics(t *testing.T) {
	addr, recv := udpSink(t)

	client, err := NewClient(Config{Enabled: true, Address: addr, Prefix: "clearance"})
	require.NoError(t, err)
	defer client.Close()

	client.Count("jobs.queued", 1, map[string]string{"mode": "source"})
	assert.Equal(t, "clearance.jobs.queued:1|c|#mode:source", recv())

	client.Gauge("queue.depth", 3, nil)
	assert.Equal(t, "clearance.queue.depth:3|g", recv())

	client.Timing("jobs.duration", 1500*time.Millisecond, nil)
	assert.Equal(t, "clearance.jobs.duration:1500|ms", recv())
}

func TestClientTagOrderingIsDeterministic(t *testing.T) {
	addr, recv := udpSink(t)

	client, err := NewClient(Config{Enabled: true, Address: addr})
	require.NoError(t, err)
	defer client.Close()

	client.Count("sweep", 2, map[string]string{
		"zone":   "a",
		"mode":   "source",
		"result": "ok",
	})
	assert.Equal(t, "sweep:2|c|#mode:source,result:ok,zone:a", recv())
}

func TestClientNameSanitization(t *testing.T) {
	addr, recv := udpSink(t)

	client, err := NewClient(Config{Enabled: true, Address: addr, Prefix: ".clearance."})
	require.NoError(t, err)
	defer client.Close()

	client.Count(" jobs/completed ", 1, nil)
	assert.Equal(t, "clearance.jobs_completed:1|c", recv())
}

func TestClientDisabledIsNoOp(t *testing.T) {
	client, err := NewClient(Config{Enabled: false, Address: "127.0.0.1:1"})
	require.NoError(t, err)

	// Must not panic or dial anything.
	client.Count("jobs.queued", 1, nil)
	client.Gauge("queue.depth", 1, nil)
	client.Timing("jobs.duration", time.Second, nil)
	require.NoError(t, client.Close())

	var nilClient *Client
	nilClient.Count("jobs.queued", 1, nil)
	require.NoError(t, nilClient.Close())
}

func TestClientRequiresAddressWhenEnabled(t *testing.T) {
	client, err := NewClient(Config{Enabled: true, Address: "  "})
	require.NoError(t, err)

	// Blank address degrades to disabled rather than failing startup.
	client.Count("jobs.queued", 1, nil)
	require.NoError(t, client.Close())
}
