package launch

import (
	"reflect"
	"testing"
)

func TestConfigArgv(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{
			name: "canonical invocation",
			cfg:  Config{App: "app.main:app", Host: "0.0.0.0", Port: 8000, ProxyHeaders: true},
			want: []string{"uvicorn", "app.main:app", "--host", "0.0.0.0", "--port", "8000", "--proxy-headers"},
		},
		{
			name: "proxy headers off",
			cfg:  Config{App: "app.main:app", Host: "0.0.0.0", Port: 8000},
			want: []string{"uvicorn", "app.main:app", "--host", "0.0.0.0", "--port", "8000"},
		},
		{
			name: "custom binding",
			cfg:  Config{App: "svc.api:application", Host: "127.0.0.1", Port: 9000, ProxyHeaders: true},
			want: []string{"uvicorn", "svc.api:application", "--host", "127.0.0.1", "--port", "9000", "--proxy-headers"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.Argv()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Argv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigProbeAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"0.0.0.0", 8000, "127.0.0.1:8000"},
		{"::", 8000, "127.0.0.1:8000"},
		{"10.0.0.5", 8000, "10.0.0.5:8000"},
	}

	for _, tt := range tests {
		cfg := Config{Host: tt.host, Port: tt.port}
		if got := cfg.ProbeAddr(); got != tt.want {
			t.Errorf("ProbeAddr() with host %q = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Image:        "campaigns-api:latest",
		App:          "app.main:app",
		Host:         "0.0.0.0",
		Port:         8000,
		ProxyHeaders: true,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing image", func(c *Config) { c.Image = "" }},
		{"app without attribute", func(c *Config) { c.App = "app.main" }},
		{"app without module", func(c *Config) { c.App = ":app" }},
		{"missing host", func(c *Config) { c.Host = "" }},
		{"zero port", func(c *Config) { c.Port = 0 }},
		{"huge port", func(c *Config) { c.Port = 99999 }},
		{"malformed env", func(c *Config) { c.Env = []string{"NOVALUE"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() accepted invalid config")
			}
		})
	}
}
