package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupWritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := SetupWithOptions(Options{Service: "vaultd", Env: "test", Output: &buf})
	defer closer.Close()

	logger.Info("harvested", MaskField("caller", "0xabc"), MaskField("vault", "0xdef"))

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	for key, want := range map[string]string{
		"message":  "harvested",
		"severity": "INFO",
		"service":  "vaultd",
		"env":      "test",
		"caller":   RedactedValue,
		"vault":    "0xdef",
	} {
		if got, _ := line[key].(string); got != want {
			t.Fatalf("%s: got %q want %q", key, got, want)
		}
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("expected timestamp key in %v", line)
	}
}

func TestSetupTeesIntoRotatingFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "vaultd.log")
	logger, closer := SetupWithOptions(Options{Service: "vaultd", File: path, MaxSizeMB: 1, Output: &buf})
	logger.Warn("shutdown")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"shutdown"`) {
		t.Fatalf("log file missing record: %s", data)
	}
	if !strings.Contains(buf.String(), `"severity":"WARN"`) {
		t.Fatalf("stdout copy missing record: %s", buf.String())
	}
}

func TestAllowExtendsAllowlist(t *testing.T) {
	if attr := MaskField("recipient", "0x1"); attr.Value.String() != RedactedValue {
		t.Fatalf("expected recipient to be masked, got %s", attr.Value.String())
	}
	Allow(" Recipient ")
	if attr := MaskField("recipient", "0x1"); attr.Value.String() != "0x1" {
		t.Fatalf("expected recipient to be allowed, got %s", attr.Value.String())
	}
	if attr := MaskField("owner", ""); attr.Value.String() != "" {
		t.Fatalf("expected empty values to pass through")
	}
	found := false
	for _, key := range RedactionAllowlist() {
		if key == "recipient" {
			found = true
		}
	}
	if !found {
		t.Fatalf("allowlist missing recipient: %v", RedactionAllowlist())
	}
}
