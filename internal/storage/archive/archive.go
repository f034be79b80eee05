// Package archive persists finished backtest reports to a pluggable storage
// backend, one JSON document per run.
package archive

import (
	"context"
	"encoding/json"
	"path"
	"sort"
	"strings"

	"github.com/parkerwe/hindcast/internal/backtest"
)

// Storage is the raw blob backend an Archiver writes through.
type Storage interface {
	Write(ctx context.Context, path string, data []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// runsPrefix is where run reports live inside the backend.
const runsPrefix = "runs"

// Archiver stores and retrieves backtest reports by run ID.
type Archiver struct {
	storage Storage
}

// New creates an archiver over the given backend.
func New(storage Storage) *Archiver {
	return &Archiver{storage: storage}
}

func runPath(runID string) string {
	return path.Join(runsPrefix, runID+".json")
}

// Save writes the report as runs/<run-id>.json.
func (a *Archiver) Save(ctx context.Context, rep *backtest.Report) error {
	data, err := rep.JSON()
	if err != nil {
		return err
	}
	return a.storage.Write(ctx, runPath(rep.RunID), data)
}

// Load retrieves a previously saved report by run ID.
func (a *Archiver) Load(ctx context.Context, runID string) (*backtest.Report, error) {
	data, err := a.storage.Read(ctx, runPath(runID))
	if err != nil {
		return nil, err
	}

	var rep backtest.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// List returns the run IDs of all archived reports, sorted.
func (a *Archiver) List(ctx context.Context) ([]string, error) {
	paths, err := a.storage.List(ctx, runsPrefix)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, p := range paths {
		name := path.Base(p)
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes an archived report.
func (a *Archiver) Delete(ctx context.Context, runID string) error {
	return a.storage.Delete(ctx, runPath(runID))
}

// Exists reports whether a run has been archived.
func (a *Archiver) Exists(ctx context.Context, runID string) (bool, error) {
	return a.storage.Exists(ctx, runPath(runID))
}
