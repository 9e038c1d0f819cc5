package blobstore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/regiongrow/labelcodec"
	"github.com/hupe1980/regiongrow/matrix"
	"github.com/hupe1980/regiongrow/resource"
)

// Blob names inside a run.
const (
	LabelsBlob   = "labels.rglb"
	ManifestBlob = "run.json"
)

// readBufferSize batches the small header reads of labelcodec.Decode into
// large ranged requests.
const readBufferSize = 1 << 20

// Runs lays out segmentation runs in a BlobStore. Run id owns the prefix
// "id/" holding the encoded label raster and a JSON manifest. The manifest
// is written last, so List only reports complete runs.
type Runs struct {
	store BlobStore
	rc    *resource.Controller
}

// NewRuns returns a Runs over store. Label writes are throttled by rc's
// IO limit; rc may be nil.
func NewRuns(store BlobStore, rc *resource.Controller) *Runs {
	return &Runs{store: store, rc: rc}
}

// Store returns the underlying store.
func (r *Runs) Store() BlobStore { return r.store }

// LabelsName returns the blob name of run id's label raster.
func LabelsName(id string) string { return id + "/" + LabelsBlob }

// ManifestName returns the blob name of run id's manifest.
func ManifestName(id string) string { return id + "/" + ManifestBlob }

// CheckRunID validates a run id: a single name element.
func CheckRunID(id string) error {
	if strings.Contains(id, "/") {
		return fmt.Errorf("%w: run %q", ErrInvalidName, id)
	}
	return CheckName(id)
}

// WriteLabels encodes src as run id's label raster. On failure the
// partial blob is aborted and never becomes visible.
func (r *Runs) WriteLabels(ctx context.Context, id string, src labelcodec.Source, c labelcodec.Compression) error {
	if err := CheckRunID(id); err != nil {
		return err
	}
	name := LabelsName(id)
	w, err := r.store.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("run %s: creating labels: %w", id, err)
	}
	if err := labelcodec.Encode(resource.NewRateLimitedWriter(ctx, w, r.rc), src, c); err != nil {
		_ = Abort(w)
		return fmt.Errorf("run %s: encoding labels: %w", id, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("run %s: committing labels: %w", id, err)
	}
	return nil
}

// ReadLabels decodes run id's label raster into a new matrix.
func (r *Runs) ReadLabels(ctx context.Context, id string, policy matrix.Policy, opts ...matrix.Option) (*matrix.Matrix[uint32], labelcodec.Header, error) {
	if err := CheckRunID(id); err != nil {
		return nil, labelcodec.Header{}, err
	}
	b, err := r.store.Open(ctx, LabelsName(id))
	if err != nil {
		return nil, labelcodec.Header{}, fmt.Errorf("run %s: %w", id, err)
	}
	defer func() { _ = b.Close() }()

	m, h, err := labelcodec.Decode(bufio.NewReaderSize(NewReader(ctx, b), readBufferSize), policy, opts...)
	if err != nil {
		return nil, labelcodec.Header{}, fmt.Errorf("run %s: decoding labels: %w", id, err)
	}
	return m, h, nil
}

// LabelsHeader reads only the header of run id's label raster.
func (r *Runs) LabelsHeader(ctx context.Context, id string) (labelcodec.Header, error) {
	if err := CheckRunID(id); err != nil {
		return labelcodec.Header{}, err
	}
	b, err := r.store.Open(ctx, LabelsName(id))
	if err != nil {
		return labelcodec.Header{}, fmt.Errorf("run %s: %w", id, err)
	}
	defer func() { _ = b.Close() }()

	rc, err := b.ReadRange(ctx, 0, labelcodec.HeaderSize)
	if err != nil {
		return labelcodec.Header{}, fmt.Errorf("run %s: %w", id, err)
	}
	defer func() { _ = rc.Close() }()
	return labelcodec.ReadHeader(rc)
}

// WriteManifest stores v as run id's JSON manifest. Write it after the
// labels: it marks the run complete.
func (r *Runs) WriteManifest(ctx context.Context, id string, v any) error {
	if err := CheckRunID(id); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("run %s: encoding manifest: %w", id, err)
	}
	if err := r.store.Put(ctx, ManifestName(id), data); err != nil {
		return fmt.Errorf("run %s: writing manifest: %w", id, err)
	}
	return nil
}

// ReadManifest decodes run id's manifest into v.
func (r *Runs) ReadManifest(ctx context.Context, id string, v any) error {
	if err := CheckRunID(id); err != nil {
		return err
	}
	data, err := ReadAll(ctx, r.store, ManifestName(id))
	if err != nil {
		return fmt.Errorf("run %s: %w", id, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("run %s: decoding manifest: %w", id, err)
	}
	return nil
}

// List returns the sorted ids of runs that have a manifest.
func (r *Runs) List(ctx context.Context) ([]string, error) {
	names, err := r.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, name := range names {
		id, ok := strings.CutSuffix(name, "/"+ManifestBlob)
		if ok && !strings.Contains(id, "/") {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Delete removes every blob of run id. The manifest goes first so a
// partially deleted run is no longer listed.
func (r *Runs) Delete(ctx context.Context, id string) error {
	if err := CheckRunID(id); err != nil {
		return err
	}
	if err := r.store.Delete(ctx, ManifestName(id)); err != nil {
		return fmt.Errorf("run %s: %w", id, err)
	}
	names, err := r.store.List(ctx, id+"/")
	if err != nil {
		return fmt.Errorf("run %s: %w", id, err)
	}
	var errs []error
	for _, name := range names {
		if err := r.store.Delete(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
