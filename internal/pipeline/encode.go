package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"compressure/internal/fileutil"
	"compressure/internal/journal"
	"compressure/internal/logging"
	"compressure/internal/manifest"
	"compressure/internal/params"
	"compressure/internal/services"
)

// EncodeRequest asks for one transcoding of Source.
type EncodeRequest struct {
	Source    string
	Params    params.Set
	Overwrite bool
}

// EncodeResult describes the encode that satisfied a request.
type EncodeResult struct {
	Source     string
	Name       string
	Artifact   string
	Invocation string
	Cached     bool
}

// Encode returns the artifact for req, transcoding only when the manifest
// has no usable encode under the canonical parameter name. Concurrent
// identical requests share one transcode.
func (p *Pipeline) Encode(ctx context.Context, req EncodeRequest) (EncodeResult, error) {
	norm, err := req.Params.Normalize()
	if err != nil {
		return EncodeResult{}, err
	}
	name, err := norm.Name()
	if err != nil {
		return EncodeResult{}, err
	}
	abs, err := filepath.Abs(req.Source)
	if err != nil {
		return EncodeResult{}, fmt.Errorf("resolve source path: %w", err)
	}

	key := fmt.Sprintf("%s\x00%s\x00%t", abs, name, req.Overwrite)
	v, err, _ := p.encodes.Do(key, func() (any, error) {
		return p.encode(ctx, abs, norm, name, req.Overwrite)
	})
	if err != nil {
		return EncodeResult{}, err
	}
	return v.(EncodeResult), nil
}

func (p *Pipeline) encode(ctx context.Context, sourcePath string, set params.Set, name string, overwrite bool) (EncodeResult, error) {
	started := time.Now()
	src, err := p.resolveSource(sourcePath)
	if err != nil {
		return EncodeResult{}, err
	}
	ctx = services.WithSource(ctx, src.Name)
	entry := journal.Entry{Operation: "encode", Source: src.Name, Encode: name}

	replace := overwrite
	if !overwrite {
		existing, err := p.manifest.GetEncode(src.Name, name)
		switch {
		case err == nil && fileutil.FileExists(existing.Artifact):
			p.metrics.CacheLookup("encode", true)
			entry.Status = journal.StatusCached
			entry.Artifact = existing.Artifact
			entry.Invocation = existing.Invocation
			p.finish(ctx, entry, started, nil)
			return EncodeResult{
				Source:     src.Name,
				Name:       name,
				Artifact:   existing.Artifact,
				Invocation: existing.Invocation,
				Cached:     true,
			}, nil
		case err == nil:
			logging.WarnWithContext(p.logger, "encode artifact missing; re-encoding", "encode_artifact_missing",
				logging.Source(src.Name),
				logging.Encode(name),
				logging.String("artifact", existing.Artifact),
				logging.String(logging.FieldImpact, "the encode and its slices are rebuilt"),
			)
			replace = true
		case !isNotFound(err):
			return EncodeResult{}, err
		}
	}
	p.metrics.CacheLookup("encode", false)

	result, err := p.transcode(ctx, src, set, name, replace)
	entry.Artifact = result.Artifact
	entry.Invocation = result.Invocation
	p.finish(ctx, entry, started, err)
	if err != nil {
		return EncodeResult{}, err
	}
	return result, nil
}

// transcode produces the artifact in a temp sibling and renames it into place,
// so an interrupted ffmpeg never leaves a file the manifest could point at.
func (p *Pipeline) transcode(ctx context.Context, src manifest.Source, set params.Set, name string, replace bool) (EncodeResult, error) {
	fileName, err := set.FileName(src.Name)
	if err != nil {
		return EncodeResult{}, err
	}
	if err := os.MkdirAll(p.cfg.Paths.WorkDir, 0o755); err != nil {
		return EncodeResult{}, fmt.Errorf("ensure work directory: %w", err)
	}
	output := filepath.Join(p.cfg.Paths.WorkDir, fileName)
	tmp := fileutil.TempSibling(output)
	result := EncodeResult{Source: src.Name, Name: name, Artifact: output}

	if set.Reversed {
		forward, err := p.Encode(ctx, EncodeRequest{Source: src.Path, Params: set.Forward()})
		if err != nil {
			return result, fmt.Errorf("forward encode for reversal: %w", err)
		}
		result.Invocation, err = p.tool.Reverse(ctx, forward.Artifact, tmp)
		if err != nil {
			_ = fileutil.RemoveIfExists(tmp)
			return result, err
		}
	} else {
		result.Invocation, err = p.tool.Encode(ctx, src.Path, tmp, set)
		if err != nil {
			_ = fileutil.RemoveIfExists(tmp)
			return result, err
		}
	}

	if replace {
		if err := os.RemoveAll(manifest.SliceRoot(output)); err != nil {
			_ = fileutil.RemoveIfExists(tmp)
			return result, fmt.Errorf("clear stale slices: %w", err)
		}
	}
	if err := os.Rename(tmp, output); err != nil {
		_ = fileutil.RemoveIfExists(tmp)
		return result, fmt.Errorf("move encode into place: %w", err)
	}

	parameters, err := set.Parameters()
	if err != nil {
		return result, err
	}
	if _, err := p.manifest.AddEncode(src.Name, name, manifest.EncodeInput{
		Artifact:   output,
		Parameters: parameters,
		Invocation: result.Invocation,
	}, replace); err != nil {
		return result, err
	}
	return result, nil
}

// resolveSource returns the registered source for path, registering it on
// first use. A registered source with the same basename but a different path
// is a collision.
func (p *Pipeline) resolveSource(path string) (manifest.Source, error) {
	src, err := p.manifest.GetSource(path)
	if err == nil {
		if src.Path != path {
			return manifest.Source{}, services.Wrap(services.ErrAlreadyExists, "pipeline", "resolve source",
				fmt.Sprintf("%s is registered from %s, not %s", src.Name, src.Path, path), nil)
		}
		return src, nil
	}
	if !isNotFound(err) {
		return manifest.Source{}, err
	}

	info, statErr := os.Stat(path)
	if statErr != nil {
		if errors.Is(statErr, os.ErrNotExist) {
			return manifest.Source{}, services.Wrap(services.ErrNotFound, "pipeline", "resolve source", "source file "+path, nil)
		}
		return manifest.Source{}, fmt.Errorf("stat source: %w", statErr)
	}
	if info.IsDir() {
		return manifest.Source{}, services.Wrap(services.ErrInvalidParameter, "pipeline", "resolve source", path+" is a directory", nil)
	}
	return p.manifest.AddSource(path)
}
