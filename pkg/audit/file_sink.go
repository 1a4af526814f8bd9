package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/NeuralTrust/ReplyGuard/pkg/types"
)

// FileSink appends entries as JSON lines. Append-only; entries are never
// rewritten.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

func NewFileSink(path string) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	return &FileSink{file: file}, nil
}

func (s *FileSink) Name() string {
	return "file"
}

func (s *FileSink) Write(_ context.Context, entry types.AuditLogEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *FileSink) Close() error {
	return s.file.Close()
}
