// Package store archives finished session transcripts as JSON files.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/oklog/ulid/v2"

	torqueErrors "github.com/harunnryd/torque/internal/errors"
)

// Archive is a directory of <ulid>.json transcripts plus an index.json summary.
type Archive struct {
	dir     string
	lockCfg FileLockConfig
}

func NewArchive(dir string, lockCfg FileLockConfig) (*Archive, error) {
	resolved, err := ResolveTranscriptDir(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(resolved, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	return &Archive{dir: resolved, lockCfg: lockCfg}, nil
}

func (a *Archive) Dir() string {
	return a.dir
}

// Save writes t and records it in the index. An empty ID is filled with a new ULID.
func (a *Archive) Save(ctx context.Context, t *Transcript) (string, error) {
	if t == nil {
		return "", torqueErrors.InvalidInput("nil transcript")
	}
	if t.ID == "" {
		t.ID = ulid.Make().String()
	}
	if t.EndedAt.IsZero() {
		t.EndedAt = time.Now()
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode transcript: %w", err)
	}

	lock, err := AcquireFileLock(ctx, a.dir, a.lockCfg)
	if err != nil {
		return "", err
	}
	defer lock.Unlock()

	if err := atomic.WriteFile(transcriptPath(a.dir, t.ID), bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}

	idx, err := a.readIndex()
	if err != nil {
		return "", err
	}
	idx.Transcripts[t.ID] = t.Summary()
	if err := a.writeIndex(idx); err != nil {
		return "", err
	}
	return t.ID, nil
}

// List returns summaries, newest first.
func (a *Archive) List() ([]Summary, error) {
	idx, err := a.readIndex()
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(idx.Transcripts))
	for _, s := range idx.Transcripts {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

// Load reads one transcript. id may be a unique prefix of the full ULID.
func (a *Archive) Load(id string) (*Transcript, error) {
	full, err := a.resolve(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(transcriptPath(a.dir, full))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, torqueErrors.NotFound("transcript " + full)
		}
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode transcript %s: %w", full, err)
	}
	return &t, nil
}

func (a *Archive) resolve(id string) (string, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if id == "" {
		return "", torqueErrors.InvalidInput("transcript id is required")
	}
	idx, err := a.readIndex()
	if err != nil {
		return "", err
	}
	if _, ok := idx.Transcripts[id]; ok {
		return id, nil
	}
	var matches []string
	for full := range idx.Transcripts {
		if strings.HasPrefix(full, id) {
			matches = append(matches, full)
		}
	}
	switch len(matches) {
	case 0:
		return "", torqueErrors.NotFound("transcript " + id)
	case 1:
		return matches[0], nil
	default:
		return "", torqueErrors.InvalidInput(fmt.Sprintf("transcript prefix %s is ambiguous (%d matches)", id, len(matches)))
	}
}

func (a *Archive) readIndex() (*index, error) {
	idx := &index{Transcripts: map[string]Summary{}}
	data, err := os.ReadFile(indexPath(a.dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return idx, nil
		}
		return nil, fmt.Errorf("read transcript index: %w", err)
	}
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, fmt.Errorf("decode transcript index: %w", err)
	}
	if idx.Transcripts == nil {
		idx.Transcripts = map[string]Summary{}
	}
	return idx, nil
}

func (a *Archive) writeIndex(idx *index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcript index: %w", err)
	}
	return atomic.WriteFile(indexPath(a.dir), bytes.NewReader(data))
}
