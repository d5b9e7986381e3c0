package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderCommandDefaults(t *testing.T) {
	dir := t.TempDir()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"render", dir})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("render failed: %v", err)
	}

	rendered := out.String()
	for _, want := range []string{
		"FROM python:3.11-slim\n",
		"WORKDIR /app",
		"COPY requirements.txt ./",
		"RUN pip install --no-cache-dir -r requirements.txt",
		`ENV PYTHONPATH="/app"`,
		`PYTHONUNBUFFERED="1"`,
		"EXPOSE 8000",
		`CMD ["uvicorn","app.main:app","--host","0.0.0.0","--port","8000","--proxy-headers"]`,
	} {
		if !strings.Contains(rendered, want) {
			t.Errorf("rendered recipe missing %q:\n%s", want, rendered)
		}
	}
}

func TestRenderCommandWithRecipe(t *testing.T) {
	dir := t.TempDir()
	content := `
base: python:3.12-slim
expose: 9000
entrypoint:
  app: svc.api:application
  host: 0.0.0.0
  port: 9000
`
	err := os.WriteFile(filepath.Join(dir, "asgiship.yaml"), []byte(content), 0o644)
	if err != nil {
		t.Fatalf("write recipe: %v", err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"render", dir})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("render failed: %v", err)
	}

	rendered := out.String()
	if !strings.Contains(rendered, "FROM python:3.12-slim\n") {
		t.Errorf("base override not applied:\n%s", rendered)
	}
	if !strings.Contains(rendered, "EXPOSE 9000") {
		t.Errorf("expose override not applied:\n%s", rendered)
	}
	if !strings.Contains(rendered, `"svc.api:application"`) {
		t.Errorf("entrypoint override not applied:\n%s", rendered)
	}
}
