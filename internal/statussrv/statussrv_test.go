package statussrv

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/snapetech/dtvstb/internal/metrics"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	return "127.0.0.1:18089"
}

func TestServer_statusAndMetricsEndpoints(t *testing.T) {
	m := metrics.New()
	m.RecordSwitch("direct")

	addr := freeAddr(t)
	srv := New(addr, m.Registry, func() Status {
		return Status{ChannelNumber: 3, VolumePercent: 0.5, Muted: false}
	})
	srv.Start()
	defer srv.Stop()

	time.Sleep(50 * time.Millisecond)

	resp, err := http.Get("http://" + addr + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	var st Status
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if st.ChannelNumber != 3 {
		t.Errorf("ChannelNumber = %d, want 3", st.ChannelNumber)
	}

	resp2, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp2.StatusCode)
	}
}
