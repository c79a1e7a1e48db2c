package launch

import (
	"context"
	"errors"

	"github.com/tsukumogami/embeddb/internal/distribution"
	"github.com/tsukumogami/embeddb/internal/process"
	"github.com/tsukumogami/embeddb/internal/store"
	"github.com/tsukumogami/embeddb/internal/transition"
)

// Instance is a running server together with everything built for it.
// Its accessors describe the instance as started and stay valid after
// Stop, though the working directory and process are gone by then.
type Instance struct {
	handle *transition.Handle[*process.Running]

	proc    *process.Running
	net     Net
	workDir WorkDir
	pkg     distribution.Package
	fileSet *store.ExtractedFileSet
}

// Start builds the whole graph and returns once the server is ready. Stop
// must be called to release it.
func (s Server) Start(ctx context.Context) (*Instance, error) {
	g, err := s.Graph()
	if err != nil {
		return nil, err
	}
	h, err := transition.Init(ctx, g, ProcessKey)
	if err != nil {
		return nil, err
	}
	inst, err := snapshot(h)
	if err != nil {
		return nil, errors.Join(err, h.Release(context.WithoutCancel(ctx)))
	}
	return inst, nil
}

func snapshot(h *transition.Handle[*process.Running]) (*Instance, error) {
	l := h.Lookup()
	inst := &Instance{handle: h, proc: h.Current()}
	var err error
	if inst.net, err = transition.Get(l, NetKey); err != nil {
		return nil, err
	}
	if inst.workDir, err = transition.Get(l, WorkDirKey); err != nil {
		return nil, err
	}
	if inst.pkg, err = transition.Get(l, PackageKey); err != nil {
		return nil, err
	}
	if inst.fileSet, err = transition.Get(l, FileSetKey); err != nil {
		return nil, err
	}
	return inst, nil
}

// Process returns the server process. After Stop it reports as exited.
func (i *Instance) Process() *process.Running {
	return i.proc
}

// Net returns where the server listens.
func (i *Instance) Net() Net {
	return i.net
}

// WorkDir returns the server's scratch directory. Stop removes it.
func (i *Instance) WorkDir() string {
	return string(i.workDir)
}

// Package returns the resolved package.
func (i *Instance) Package() distribution.Package {
	return i.pkg
}

// FileSet returns the extracted files the server runs from. The file set
// is cached and outlives the instance.
func (i *Instance) FileSet() *store.ExtractedFileSet {
	return i.fileSet
}

// Stop stops the server and removes its working directory. Cached archives
// and file sets stay.
func (i *Instance) Stop(ctx context.Context) error {
	return i.handle.Release(ctx)
}

// FileSet resolves, downloads and extracts the package for s without
// starting anything.
func FileSet(ctx context.Context, s Server) (*store.ExtractedFileSet, distribution.Package, error) {
	g, err := s.Graph()
	if err != nil {
		return nil, distribution.Package{}, err
	}
	h, err := transition.Init(ctx, g, FileSetKey)
	if err != nil {
		return nil, distribution.Package{}, err
	}
	fs := h.Current()
	pkg, err := transition.Get(h.Lookup(), PackageKey)
	if relErr := h.Release(ctx); err == nil {
		err = relErr
	}
	if err != nil {
		return nil, distribution.Package{}, err
	}
	return fs, pkg, nil
}
