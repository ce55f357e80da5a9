package logger

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestDebugf_GatedByEnv(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(orig)

	t.Setenv("LOG_DEBUG", "")
	Init()
	Debugf("per-event noise %d", 1)
	if buf.Len() != 0 {
		t.Fatalf("expected debug output suppressed by default, got %q", buf.String())
	}

	t.Setenv("LOG_DEBUG", "true")
	Init()
	Debugf("per-event noise %d", 2)
	if !strings.Contains(buf.String(), "[DEBUG] per-event noise 2") {
		t.Fatalf("expected debug output when LOG_DEBUG=true, got %q", buf.String())
	}
}

func TestInfof_AlwaysWrites(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(orig)

	Infof("server starting on %s", ":8080")
	if !strings.Contains(buf.String(), "[INFO] server starting on :8080") {
		t.Fatalf("expected info output, got %q", buf.String())
	}
}
