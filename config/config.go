package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ghodss/yaml"

	"github.com/moqsien/gkreactor/client"
	"github.com/moqsien/gkreactor/engine"
	"github.com/moqsien/gkreactor/iface"
)

// Duration accepts "500ms"-style strings as well as plain nanoseconds.
type Duration time.Duration

func (that *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		d, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*that = Duration(d)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid duration %s", b)
	}
	*that = Duration(n)
	return nil
}

func (that Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(that).String())
}

func (that Duration) Std() time.Duration { return time.Duration(that) }

type ServerConfig struct {
	Address       string   `json:"address"`
	Name          string   `json:"name"`
	NumOfLoops    int      `json:"numOfLoops"`
	ReusePort     bool     `json:"reusePort"`
	TcpNoDelay    bool     `json:"tcpNoDelay"`
	KeepAlive     Duration `json:"keepAlive"`
	HighWaterMark int      `json:"highWaterMark"`
}

func (that ServerConfig) Options() engine.Options {
	return engine.Options{
		NumOfLoops:    that.NumOfLoops,
		ReusePort:     that.ReusePort,
		TcpNoDelay:    that.TcpNoDelay,
		ConnKeepAlive: that.KeepAlive.Std(),
		HighWaterMark: that.HighWaterMark,
	}
}

type ClientConfig struct {
	Address        string   `json:"address"`
	Name           string   `json:"name"`
	Retry          bool     `json:"retry"`
	TcpNoDelay     bool     `json:"tcpNoDelay"`
	InitRetryDelay Duration `json:"initRetryDelay"`
	MaxRetryDelay  Duration `json:"maxRetryDelay"`
}

func (that ClientConfig) Options() client.Options {
	return client.Options{
		Retry:          that.Retry,
		TcpNoDelay:     that.TcpNoDelay,
		InitRetryDelay: that.InitRetryDelay.Std(),
		MaxRetryDelay:  that.MaxRetryDelay.Std(),
	}
}

type LogConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
	OutputPath  string `json:"outputPath"`
}

type Config struct {
	Server   ServerConfig `json:"server"`
	Client   ClientConfig `json:"client"`
	Log      LogConfig    `json:"log"`
	Compress bool         `json:"compress"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:       "0.0.0.0:9981",
			Name:          "gkreactor",
			HighWaterMark: iface.DefaultHighWater,
		},
		Client: ClientConfig{
			Address:        "127.0.0.1:9981",
			Name:           "gkreactor-client",
			InitRetryDelay: Duration(client.DefaultInitRetryDelay),
			MaxRetryDelay:  Duration(client.DefaultMaxRetryDelay),
		},
		Log: LogConfig{Level: "info"},
	}
}

// Parse overlays YAML data on the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}
