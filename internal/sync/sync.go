package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/klauern/ifcsync/internal/detect"
	"github.com/klauern/ifcsync/internal/logging"
	"github.com/klauern/ifcsync/internal/pathmap"
	"github.com/klauern/ifcsync/internal/render"
	"github.com/klauern/ifcsync/internal/util"
	"github.com/klauern/ifcsync/internal/vcs"
)

// Store is the ledger as seen by the engine.
type Store interface {
	IsCurrent(doc detect.Document) bool
	RecordOutcome(doc detect.Document, target string, success bool) error
	SetRunID(id string)
}

// Options configures a run.
type Options struct {
	// Force bypasses the ledger check.
	Force bool
	// Commit stages and commits every written page.
	Commit bool
	// Remote and Branch are used by Auto for the push.
	Remote string
	Branch string
	// OnResult is called after each document.
	OnResult func(DocResult)
}

// Engine runs documents through mapping, rendering and writing.
type Engine struct {
	mapper *pathmap.Mapper
	store  Store
	render render.Service
	vcs    vcs.Client
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithVCS sets the client of the mirror repository used for commits and
// pushes.
func WithVCS(c vcs.Client) Option {
	return func(e *Engine) { e.vcs = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock sets the time source used in commit messages.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine.
func New(mapper *pathmap.Mapper, store Store, svc render.Service, opts ...Option) *Engine {
	e := &Engine{
		mapper: mapper,
		store:  store,
		render: svc,
		logger: logging.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run holds the state of a single Run call.
type run struct {
	id          string
	serviceDown bool
}

// Run processes docs sequentially. The error is non-nil only when ctx is
// cancelled; per-document failures are reported in the Result.
func (e *Engine) Run(ctx context.Context, docs []detect.Document, opts Options) (*Result, error) {
	defer logging.Timer("sync")()

	r := &run{id: e.newID()}
	e.store.SetRunID(r.id)
	logger := e.logger.With(logging.Run(r.id))
	logger.Info("starting sync", logging.Count(len(docs)), slog.Bool("force", opts.Force))

	result := &Result{RunID: r.id, Docs: make([]DocResult, 0, len(docs))}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("sync interrupted: %w", err)
		}
		dr := e.syncOne(ctx, r, doc, opts, logger)
		result.Docs = append(result.Docs, dr)
		if opts.OnResult != nil {
			opts.OnResult(dr)
		}
	}

	logger.Info(result.Summary())
	return result, nil
}

func (e *Engine) syncOne(ctx context.Context, r *run, doc detect.Document, opts Options, logger *slog.Logger) DocResult {
	logger = logger.With(logging.Document(doc.RelPath))
	dr := DocResult{Document: doc}

	if !opts.Force && e.store.IsCurrent(doc) {
		logger.Debug("skipping current document")
		dr.Action = ActionSkipped
		dr.Reason = ReasonCurrent
		return dr
	}

	mapping, reason := e.mapper.Map(doc.RelPath)
	if reason != pathmap.ReasonMapped {
		dr.Action = ActionSkipped
		dr.Rule = mapping.Rule
		dr.Reason = skipReason(reason)
		if reason == pathmap.ReasonUnrecognized {
			logger.Warn("no mapping rule matched")
		} else {
			logger.Info("skipping unmapped document", slog.String("reason", string(reason)))
		}
		return dr
	}
	dr.Rule = mapping.Rule
	dr.URL = mapping.URL
	dr.Target = e.mapper.OutputPath(mapping.URL)
	logger = logger.With(logging.URL(dr.URL))

	if !e.ensureService(ctx, r) {
		return e.fail(doc, dr, ReasonUnavailable, render.ErrUnavailable, logger)
	}

	page, err := e.render.Fetch(ctx, mapping.URL)
	if err != nil {
		return e.fail(doc, dr, "fetch failed", err, logger)
	}
	dr.Title = page.Title

	// #nosec G306 - published pages are world readable
	if err := util.WriteFileAtomic(dr.Target, page.Body, 0o644); err != nil {
		return e.fail(doc, dr, "write failed", err, logger)
	}

	dr.Action = ActionSucceeded
	if err := e.store.RecordOutcome(doc, dr.Target, true); err != nil {
		logger.Warn("failed to record outcome", logging.Err(err))
	}
	logger.Info("rendered page", logging.Rule(dr.Rule), logging.Target(dr.Target), slog.String("title", page.Title))

	if opts.Commit {
		dr.Committed = e.commit(ctx, doc, dr.Target, logger)
	}
	return dr
}

// ensureService checks the render service before every document, starting
// it when needed. Once it could not be reached the rest of the run fails
// without trying again.
func (e *Engine) ensureService(ctx context.Context, r *run) bool {
	if r.serviceDown {
		return false
	}
	if e.render.EnsureReachable(ctx) {
		return true
	}
	r.serviceDown = true
	return false
}

func (e *Engine) fail(doc detect.Document, dr DocResult, reason string, err error, logger *slog.Logger) DocResult {
	dr.Action = ActionFailed
	dr.Reason = reason
	dr.Error = err
	logger.Error("sync failed", slog.String("reason", reason), logging.Err(err))
	if recErr := e.store.RecordOutcome(doc, dr.Target, false); recErr != nil {
		logger.Warn("failed to record outcome", logging.Err(recErr))
	}
	return dr
}

// commit stages and commits target. Failures are logged and reported as
// false; they never fail the document.
func (e *Engine) commit(ctx context.Context, doc detect.Document, target string, logger *slog.Logger) bool {
	if e.vcs == nil {
		logger.Debug("no vcs client configured, not committing")
		return false
	}

	msg := vcs.CommitMessage(doc.RelPath, e.now())
	if err := vcs.ValidateMessage(msg); err != nil {
		logger.Warn("refusing to commit", logging.Err(err))
		return false
	}
	if err := e.vcs.Add(ctx, target); err != nil {
		logger.Warn("failed to stage page", logging.Target(target), logging.Err(err))
		return false
	}
	if err := e.vcs.Commit(ctx, msg); err != nil {
		if errors.Is(err, vcs.ErrNothingToCommit) {
			logger.Debug("page unchanged, nothing to commit", logging.Target(target))
		} else {
			logger.Warn("failed to commit page", logging.Target(target), logging.Err(err))
		}
		return false
	}
	logger.Info("committed page", logging.Target(target))
	return true
}

// Auto runs docs with commits enabled and pushes the mirror afterwards. An
// empty docs list does nothing. A push failure is returned as an error.
func (e *Engine) Auto(ctx context.Context, docs []detect.Document, opts Options) (*Result, error) {
	if len(docs) == 0 {
		return &Result{}, nil
	}
	opts.Commit = true
	result, err := e.Run(ctx, docs, opts)
	if err != nil {
		return result, err
	}
	if e.vcs == nil {
		return result, errors.New("cannot push: no vcs client configured")
	}

	remote, branch := opts.Remote, opts.Branch
	if remote == "" {
		remote = "origin"
	}
	if branch == "" {
		branch = "main"
	}
	if err := e.vcs.Push(ctx, remote, branch); err != nil {
		return result, fmt.Errorf("push to %s/%s failed: %w", remote, branch, err)
	}
	result.Pushed = true
	e.logger.Info("pushed mirror", slog.String("remote", remote), slog.String("branch", branch))
	return result, nil
}

func skipReason(r pathmap.Reason) string {
	switch r {
	case pathmap.ReasonUnsupported:
		return ReasonUnsupported
	case pathmap.ReasonOutsideRoots:
		return ReasonOutsideRoots
	default:
		return ReasonUnrecognized
	}
}
