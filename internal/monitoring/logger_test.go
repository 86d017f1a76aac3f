package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got []string
	SetLogger(func(format string, v ...interface{}) {
		got = append(got, fmt.Sprintf(format, v...))
	})
	Logf("step %d anomalous", 4)
	if len(got) != 1 || got[0] != "step 4 anomalous" {
		t.Fatalf("custom logger got %q", got)
	}

	// nil installs a no-op logger.
	SetLogger(nil)
	Logf("dropped")
	if len(got) != 1 {
		t.Errorf("no-op logger should not reach previous logger, got %q", got)
	}
}

func TestDebugf(t *testing.T) {
	original := Logf
	defer func() {
		Logf = original
		SetDebug(false)
	}()

	calls := 0
	SetLogger(func(string, ...interface{}) { calls++ })

	SetDebug(false)
	Debugf("hidden")
	if calls != 0 {
		t.Errorf("Debugf logged while disabled")
	}

	SetDebug(true)
	Debugf("shown %v", 1)
	if calls != 1 {
		t.Errorf("Debugf calls = %d, want 1", calls)
	}
}
