package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestRun_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := run(&buf, options{size: 3, seed: "1234"}); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	lines := strings.Split(buf.String(), "\n")
	if lines[0] != "start cell=(0,0) visited=1 stack=1" {
		t.Errorf("first line = %q", lines[0])
	}
	if lines[18] != "done visited=9 stack=0" {
		t.Errorf("line 19 = %q, want generation done", lines[18])
	}
	if !strings.HasPrefix(lines[19], "search_start cell=(0,0)") {
		t.Errorf("line 20 = %q, want search start", lines[19])
	}
	if lines[40] != "finished found=true visited=7" {
		t.Errorf("line 41 = %q, want finished", lines[40])
	}

	out := buf.String()
	if !strings.Contains(out, "carves 8  backtracks 9") {
		t.Errorf("missing stats line:\n%s", out)
	}
	if !strings.Contains(out, "path 7 cells, 7 visited") {
		t.Errorf("missing path line:\n%s", out)
	}
	if strings.Count(out, "*") != 5 {
		t.Errorf("expected 5 path markers:\n%s", out)
	}
}

func TestRun_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := run(&buf, options{size: 3, seed: "1234", json: true}); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	lines := strings.Split(buf.String(), "\n")
	for i := 0; i < 41; i++ {
		var obj map[string]any
		if err := json.Unmarshal([]byte(lines[i]), &obj); err != nil {
			t.Fatalf("line %d is not JSON: %q", i+1, lines[i])
		}
		if _, ok := obj["event"]; !ok {
			t.Errorf("line %d has no event key: %q", i+1, lines[i])
		}
	}
}

func TestRun_Quiet(t *testing.T) {
	var buf bytes.Buffer
	if err := run(&buf, options{size: 3, seed: "1234", quiet: true}); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	for _, line := range strings.Split(buf.String(), "\n") {
		for _, prefix := range []string{"start cell=", "carve (", "backtrack cell=", "dequeue cell=", "finished found="} {
			if strings.HasPrefix(line, prefix) {
				t.Errorf("quiet output contains event line %q", line)
			}
		}
	}
	if !strings.HasPrefix(buf.String(), "\nseed 1234  size 3") {
		t.Errorf("quiet output = %q", buf.String())
	}
}

// failOnce rejects its first write and accepts the rest.
type failOnce struct {
	failed bool
	buf    bytes.Buffer
}

func (w *failOnce) Write(p []byte) (int, error) {
	if !w.failed {
		w.failed = true
		return 0, errors.New("disk full")
	}
	return w.buf.Write(p)
}

func TestRun_StatsWriteError(t *testing.T) {
	w := &failOnce{}
	err := run(w, options{size: 3, seed: "1234", quiet: true})
	if err == nil || err.Error() != "disk full" {
		t.Errorf("run() error = %v, want the stats line write error", err)
	}
	if w.buf.Len() != 0 {
		t.Errorf("run() kept writing after a failed write: %q", w.buf.String())
	}
}

func TestRun_InvalidSize(t *testing.T) {
	for _, size := range []int{0, 2, 201} {
		if err := run(&bytes.Buffer{}, options{size: size, seed: "1"}); err == nil {
			t.Errorf("run() accepted size %d", size)
		}
	}
}
