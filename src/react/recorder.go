package react

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/RAIL-Suite/RAIL-sub001/src/json"
)

// Recorder persists finished sessions for audit and replay.
type Recorder interface {
	Record(ctx context.Context, s *Session) error
}

// JSONLRecorder appends one JSON encoded session per line to a file.
type JSONLRecorder struct {
	mu   sync.Mutex
	path string
}

// NewJSONLRecorder writes to path, creating it on first use.
func NewJSONLRecorder(path string) *JSONLRecorder {
	return &JSONLRecorder{path: path}
}

// Record implements Recorder.
func (r *JSONLRecorder) Record(ctx context.Context, s *Session) error {
	line, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadSessions decodes every session written by a JSONLRecorder.
func ReadSessions(r io.Reader) ([]*Session, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16<<20)
	var out []*Session
	for n := 1; scanner.Scan(); n++ {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var s Session
		if err := json.Unmarshal(line, &s); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		out = append(out, &s)
	}
	return out, scanner.Err()
}
