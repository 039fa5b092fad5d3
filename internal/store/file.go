package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"SlaEscrow/internal/model"
)

// File keeps agreements in memory and rewrites a JSON snapshot on every
// change. Suited to single-node deployments without SQLite.
type File struct {
	*Memory
	path string
}

type snapshot struct {
	Agreements []*model.Agreement `json:"agreements"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// NewFile loads the snapshot at path. A missing file yields an empty store.
func NewFile(path string) (*File, error) {
	f := &File{Memory: NewMemory(), path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, err
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for _, ag := range snap.Agreements {
		f.byID[ag.ID] = ag
	}
	return f, nil
}

func (f *File) Create(ctx context.Context, ag *model.Agreement) error {
	if err := f.Memory.Create(ctx, ag); err != nil {
		return err
	}
	if err := f.save(ctx); err != nil {
		f.drop(ag.ID)
		return err
	}
	return nil
}

func (f *File) Save(ctx context.Context, ag *model.Agreement) error {
	prev, err := f.Memory.Get(ctx, ag.ID)
	if err != nil {
		return err
	}
	if err := f.Memory.Save(ctx, ag); err != nil {
		return err
	}
	if err := f.save(ctx); err != nil {
		f.mu.Lock()
		f.byID[ag.ID] = prev
		f.mu.Unlock()
		ag.Version = prev.Version
		return err
	}
	return nil
}

func (f *File) drop(id uuid.UUID) {
	f.mu.Lock()
	delete(f.byID, id)
	f.mu.Unlock()
}

// save writes the snapshot through a temp file so a crash never leaves a
// truncated snapshot behind.
func (f *File) save(ctx context.Context) error {
	ags, err := f.Memory.List(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(snapshot{Agreements: ags, UpdatedAt: time.Now()}, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}
