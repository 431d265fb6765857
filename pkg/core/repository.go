package core

import "context"

// Output locates what the producer generated for one artifact kind.
type Output struct {
	Root  string // file or directory on the local filesystem
	IsDir bool
}

// Outputs maps kind ids to their produced output.
type Outputs map[string]Output

// Session is the once-per-run handle a Producer hands out from Begin.
// The archive driver owns it and passes it back into every Produce call.
type Session interface {
	Close() error
}

// Producer generates artifacts for a version. It is an external collaborator:
// the core never looks inside it and never calls it with an empty kind set.
type Producer interface {
	// Begin prepares a run and returns its lifecycle handle.
	Begin(ctx context.Context) (Session, error)

	// Produce generates the requested kinds for v and returns an output for
	// every one of them.
	Produce(ctx context.Context, s Session, v Version, kinds []Kind) (Outputs, error)
}

// VersionSource supplies the versions of a run, sorted ascending by release
// time and already filtered.
type VersionSource interface {
	ListVersions(ctx context.Context) ([]Version, error)
}

// ProduceFunc adapts a plain function to the Producer interface.
type ProduceFunc func(ctx context.Context, v Version, kinds []Kind) (Outputs, error)

type nopSession struct{}

func (nopSession) Close() error { return nil }

// Begin implements Producer.
func (f ProduceFunc) Begin(ctx context.Context) (Session, error) {
	return nopSession{}, nil
}

// Produce implements Producer.
func (f ProduceFunc) Produce(ctx context.Context, _ Session, v Version, kinds []Kind) (Outputs, error) {
	return f(ctx, v, kinds)
}

// VersionList is a fixed, already ordered VersionSource.
type VersionList []Version

// ListVersions implements VersionSource.
func (l VersionList) ListVersions(ctx context.Context) ([]Version, error) {
	out := make([]Version, len(l))
	copy(out, l)
	return out, nil
}
