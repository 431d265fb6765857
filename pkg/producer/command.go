// Package producer generates archive artifacts by running an external build
// tool, one invocation per version.
package producer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/strata/internal/atomicfile"
	"github.com/aretw0/strata/pkg/core"
)

// VersionPlaceholder is replaced by the version id in arguments, outputs and
// property values.
const VersionPlaceholder = "{version}"

// Task describes how the tool produces one artifact kind.
type Task struct {
	Args   []string // appended to the base arguments when the kind is requested
	Output string   // output path relative to the work dir
}

// Config holds the configuration of a Command producer.
type Config struct {
	WorkDir    string
	Executable string   // tool to run; resolved through Toolchain when empty
	Args       []string // base arguments of every invocation
	Prepare    []string // arguments of a command run once per session before the first build

	// PropertiesFile, relative to WorkDir, receives "version=<id>" and the
	// configured properties before every invocation. Empty disables it.
	PropertiesFile string
	Properties     map[string]string

	// Placeholders returns extra "{key}" substitutions for a version, applied
	// wherever {version} is.
	Placeholders func(v core.Version) map[string]string

	Env       []string // extra KEY=VALUE pairs
	Kinds     map[string]Task
	Toolchain *Toolchain
	Logger    *slog.Logger
}

// Command is a core.Producer running an external tool.
type Command struct {
	config Config
}

// New validates cfg and returns a producer.
func New(cfg Config) (*Command, error) {
	if cfg.WorkDir == "" {
		return nil, core.NewError(core.ErrConfig, "new producer", fmt.Errorf("work directory is required"))
	}
	if cfg.Executable == "" && cfg.Toolchain == nil {
		return nil, core.NewError(core.ErrConfig, "new producer", fmt.Errorf("either an executable or a toolchain is required"))
	}
	for id, task := range cfg.Kinds {
		if task.Output == "" {
			return nil, core.NewError(core.ErrConfig, "new producer", fmt.Errorf("kind %s has no output path", id))
		}
	}
	return &Command{config: cfg}, nil
}

// session is the per-run state handed back by Begin.
type session struct {
	executable string

	mu       sync.Mutex
	prepared bool
	closed   bool
}

func (s *session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Begin creates the work dir and resolves the executable, downloading the
// toolchain if needed.
func (c *Command) Begin(ctx context.Context) (core.Session, error) {
	if err := os.MkdirAll(c.config.WorkDir, 0755); err != nil {
		return nil, &core.Error{Kind: core.ErrProducer, Op: "begin", Path: c.config.WorkDir, Err: err}
	}

	exe := c.config.Executable
	if exe == "" {
		resolved, err := c.config.Toolchain.Ensure(ctx)
		if err != nil {
			return nil, core.NewError(core.ErrProducer, "bootstrap toolchain", err)
		}
		exe = resolved
	}
	return &session{executable: exe}, nil
}

// Produce runs the tool for v with the tasks of the requested kinds and
// returns where each kind's output landed.
func (c *Command) Produce(ctx context.Context, s core.Session, v core.Version, kinds []core.Kind) (core.Outputs, error) {
	sess, ok := s.(*session)
	if !ok {
		return nil, &core.Error{Kind: core.ErrProducer, Op: "produce", Version: v.ID, Err: fmt.Errorf("session %T was not created by this producer", s)}
	}
	sess.mu.Lock()
	closed := sess.closed
	sess.mu.Unlock()
	if closed {
		return nil, &core.Error{Kind: core.ErrProducer, Op: "produce", Version: v.ID, Err: fmt.Errorf("session is closed")}
	}

	tasks := make([]Task, 0, len(kinds))
	for _, k := range kinds {
		task, ok := c.config.Kinds[k.ID]
		if !ok {
			return nil, &core.Error{Kind: core.ErrProducer, Op: "produce", Version: v.ID, Err: fmt.Errorf("no task configured for kind %s", k.ID)}
		}
		tasks = append(tasks, task)
	}

	// Outputs of a previous version must not be mistaken for this one's.
	for _, task := range tasks {
		if err := os.RemoveAll(c.outputPath(task, v)); err != nil {
			return nil, &core.Error{Kind: core.ErrProducer, Op: "clean output", Version: v.ID, Path: c.outputPath(task, v), Err: err}
		}
	}

	if err := c.writeProperties(v); err != nil {
		return nil, &core.Error{Kind: core.ErrProducer, Op: "write properties", Version: v.ID, Err: err}
	}

	if err := c.prepare(ctx, sess, v); err != nil {
		return nil, err
	}

	args := c.expandAll(c.config.Args, v)
	for _, task := range tasks {
		args = append(args, c.expandAll(task.Args, v)...)
	}
	if err := c.run(ctx, sess.executable, args, v); err != nil {
		return nil, &core.Error{Kind: core.ErrProducer, Op: "run tool", Version: v.ID, Err: err}
	}

	out := make(core.Outputs, len(kinds))
	for i, k := range kinds {
		p := c.outputPath(tasks[i], v)
		info, err := os.Stat(p)
		if err != nil {
			return nil, &core.Error{Kind: core.ErrProducer, Op: "collect output", Version: v.ID, Path: p, Err: fmt.Errorf("kind %s: %w", k.ID, err)}
		}
		out[k.ID] = core.Output{Root: p, IsDir: info.IsDir()}
	}
	return out, nil
}

// prepare runs the Prepare command the first time a session builds anything.
func (c *Command) prepare(ctx context.Context, sess *session, v core.Version) error {
	if len(c.config.Prepare) == 0 {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.prepared {
		return nil
	}
	if err := c.run(ctx, sess.executable, c.expandAll(c.config.Prepare, v), v); err != nil {
		return &core.Error{Kind: core.ErrProducer, Op: "prepare", Version: v.ID, Err: err}
	}
	sess.prepared = true
	return nil
}

func (c *Command) outputPath(task Task, v core.Version) string {
	return filepath.Join(c.config.WorkDir, filepath.FromSlash(c.expand(task.Output, v)))
}

func (c *Command) writeProperties(v core.Version) error {
	if c.config.PropertiesFile == "" {
		return nil
	}

	keys := make([]string, 0, len(c.config.Properties))
	for k := range c.config.Properties {
		if k != "version" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("version=")
	sb.WriteString(v.ID)
	sb.WriteString("\n")
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(c.expand(c.config.Properties[k], v))
		sb.WriteString("\n")
	}

	path := filepath.Join(c.config.WorkDir, c.config.PropertiesFile)
	if err := atomicfile.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// run executes the tool in the work dir and streams its output to the logger.
func (c *Command) run(ctx context.Context, exe string, args []string, v core.Version) error {
	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Dir = c.config.WorkDir
	cmd.Env = append(os.Environ(), c.config.Env...)
	cmd.Env = append(cmd.Env, "STRATA_VERSION="+v.ID)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to attach stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to attach stderr: %w", err)
	}

	if c.config.Logger != nil {
		c.config.Logger.Debug("running tool", "version", v.ID, "executable", exe, "args", args)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", exe, err)
	}

	// Pipes must be drained before Wait closes them.
	var wg sync.WaitGroup
	wg.Add(2)
	c.pump(ctx, &wg, stdout, "stdout", v)
	c.pump(ctx, &wg, stderr, "stderr", v)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s %s failed: %w", filepath.Base(exe), strings.Join(args, " "), err)
	}
	return nil
}

func (c *Command) pump(ctx context.Context, wg *sync.WaitGroup, r io.Reader, stream string, v core.Version) {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			if c.config.Logger != nil {
				c.config.Logger.Debug(scanner.Text(), "stream", stream, "version", v.ID)
			}
		}
		// Keep draining past an oversized line so the tool never blocks on a full pipe.
		_, err := io.Copy(io.Discard, r)
		if err == nil {
			err = scanner.Err()
		}
		return err
	}, lifecycle.WithErrorHandler(func(err error) {
		if c.config.Logger != nil {
			c.config.Logger.Warn("tool output stream failed", "stream", stream, "version", v.ID, "error", err)
		}
	}))
}

func (c *Command) expand(s string, v core.Version) string {
	s = strings.ReplaceAll(s, VersionPlaceholder, v.ID)
	if c.config.Placeholders == nil || !strings.Contains(s, "{") {
		return s
	}
	for key, value := range c.config.Placeholders(v) {
		s = strings.ReplaceAll(s, "{"+key+"}", value)
	}
	return s
}

func (c *Command) expandAll(in []string, v core.Version) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = c.expand(s, v)
	}
	return out
}

var _ core.Producer = (*Command)(nil)
