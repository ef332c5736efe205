package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/panjf2000/gnet/v2/pkg/logging"
)

const sample = `
server:
  address: 127.0.0.1:7000
  numOfLoops: 4
  tcpNoDelay: true
  keepAlive: 30s
client:
  retry: true
  initRetryDelay: 250ms
  maxRetryDelay: 10s
log:
  level: debug
compress: true
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	opts := cfg.Server.Options()
	if cfg.Server.Address != "127.0.0.1:7000" || opts.NumOfLoops != 4 || !opts.TcpNoDelay || opts.ConnKeepAlive != 30*time.Second {
		t.Fatalf("server config %+v", cfg.Server)
	}
	if cfg.Server.Name != "gkreactor" || opts.HighWaterMark != 64<<20 {
		t.Fatal("defaults lost for keys absent from the file")
	}
	copts := cfg.Client.Options()
	if !copts.Retry || copts.InitRetryDelay != 250*time.Millisecond || copts.MaxRetryDelay != 10*time.Second {
		t.Fatalf("client options %+v", copts)
	}
	if cfg.Log.Level != "debug" || !cfg.Compress {
		t.Fatalf("log=%+v compress=%v", cfg.Log, cfg.Compress)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"server:\n  keepAlive: soon\n",
		"server: [\n",
	}
	for _, c := range cases {
		if _, err := Parse([]byte(c)); err == nil {
			t.Fatalf("%q parsed without error", c)
		}
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file loaded")
	}
}

func TestLoadAndSetupLogger(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "reactor.log")
	cfgPath := filepath.Join(dir, "reactor.yaml")
	if err := os.WriteFile(cfgPath, []byte("log:\n  level: warn\n  outputPath: "+logPath+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	zl, err := SetupLogger(cfg.Log)
	if err != nil {
		t.Fatal(err)
	}
	logging.Infof("hidden %d", 1)
	logging.Warnf("visible %d", 2)
	_ = zl.Sync()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "visible 2") || strings.Contains(string(data), "hidden 1") {
		t.Fatalf("log file content %q", data)
	}

	if _, err = SetupLogger(LogConfig{Level: "loud"}); err == nil {
		t.Fatal("unknown level accepted")
	}
}
