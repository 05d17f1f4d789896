package ports

import "context"

// Application is one session of the external ray-tracing program.
// Every call is synchronous and fails with an error when the program reports a failure.
type Application interface {
	Load(ctx context.Context, path string) error
	Trace(ctx context.Context, analyze bool) error
	Export(ctx context.Context, name, kind, dir, suffix string) error
	Save(ctx context.Context, path string) error
	Quit(ctx context.Context) error
}

// ApplicationFactory starts a fresh application session.
type ApplicationFactory func(ctx context.Context) (Application, error)

// PostProcessor analyzes one exported element found in dir.
// runIndex is the simulation number used in file names ("" for a single run).
type PostProcessor interface {
	PostProcess(exportedElement, exportedObject, dir, runIndex, scenePath string) error
}
