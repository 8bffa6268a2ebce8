// Package trigger turns repository and installation events into JRNs, scans
// automation documents for matching triggers and queues script runs.
package trigger

import (
	"context"

	"go.uber.org/zap"

	"github.com/Finn-coder2026/jolli-demo-sub011/docs"
	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs"
	"github.com/Finn-coder2026/jolli-demo-sub011/jrn"
	"github.com/Finn-coder2026/jolli-demo-sub011/logger"
)

// DefaultRunScriptJob is the job queued for executable documents
const DefaultRunScriptJob = "run-script"

// Job log codes written during a scan
const (
	CodeParseFailed   = "document-parse-failed"
	CodeMatched       = "document-matched"
	CodeTriggered     = "document-triggered"
	CodeDispatchError = "script-queue-failed"
)

// Dispatcher queues follow-up jobs and records scan progress.
// *jobs.JobContext satisfies it.
type Dispatcher interface {
	QueueJob(ctx context.Context, req jobs.QueueRequest) (*jobs.QueueResult, error)
	Log(ctx context.Context, code string, data map[string]any, level jobs.LogLevel)
}

// RunScriptParams are the params of the script job
type RunScriptParams struct {
	DocJRN      string `json:"docJrn"`
	KillSandbox bool   `json:"killSandbox"`
}

// Validate implements jobs.Validator
func (p *RunScriptParams) Validate() error {
	if p.DocJRN == "" {
		return errors.New("docJrn is required")
	}
	return nil
}

// ResolveRequest is one normalized repository event
type ResolveRequest struct {
	Org    string
	Repo   string
	Branch string
	Verb   jrn.Verb
}

// JRN returns the canonical name the request matches against
func (r ResolveRequest) JRN() string {
	return jrn.Build(r.Org, r.Repo, r.Branch)
}

// Match is one document activated by an event
type Match struct {
	Document docs.Document      `json:"document"`
	Matcher  jrn.TriggerMatcher `json:"matcher"`
	JobID    string             `json:"jobId,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// Result summarizes one scan
type Result struct {
	JRN         string   `json:"jrn"`
	Verb        jrn.Verb `json:"verb"`
	Scanned     int      `json:"scanned"`
	ParseErrors int      `json:"parseErrors"`
	Matches     []Match  `json:"matches"`
}

// Options configures a Resolver
type Options struct {
	Branches     BranchLookup // nil skips integration branch lookup
	RunScriptJob string
	Fallback     string // Branch used when nothing else names one
	Logger       *zap.SugaredLogger
	Metrics      *jobs.Metrics
}

// Resolver matches events against the trigger documents of one tenant
type Resolver struct {
	docs         docs.Source
	branches     BranchLookup
	runScriptJob string
	fallback     string
	logger       *zap.SugaredLogger
	metrics      *jobs.Metrics
}

// NewResolver creates a resolver over source
func NewResolver(source docs.Source, opts Options) *Resolver {
	if opts.RunScriptJob == "" {
		opts.RunScriptJob = DefaultRunScriptJob
	}
	if opts.Fallback == "" {
		opts.Fallback = FallbackBranch
	}
	return &Resolver{
		docs:         source,
		branches:     opts.Branches,
		runScriptJob: opts.RunScriptJob,
		fallback:     opts.Fallback,
		logger:       logger.OrDefault(opts.Logger).Named("trigger"),
		metrics:      opts.Metrics,
	}
}

// RunScriptJob returns the name of the job queued for executable documents
func (r *Resolver) RunScriptJob() string {
	return r.runScriptJob
}

// EffectiveBranch resolves the branch for org/repo. A failing lookup falls
// through to the event's default branch.
func (r *Resolver) EffectiveBranch(ctx context.Context, org, repo, eventDefault string) string {
	var declared string
	if r.branches != nil && org != "" && repo != "" {
		branch, ok, err := r.branches.RepoBranch(ctx, org, repo)
		if err != nil {
			r.logger.Warnw("Integration branch lookup failed",
				"org", org,
				"repo", repo,
				logger.FieldError, err,
			)
		} else if ok {
			declared = branch
		}
	}
	return ResolveBranch(declared, eventDefault, r.fallback)
}

// Match scans every document and returns those activated by req without
// queueing anything. A document that fails to parse is skipped.
func (r *Resolver) Match(ctx context.Context, req ResolveRequest) (*Result, error) {
	return r.scan(ctx, req, nil)
}

// Resolve scans every document and queues a script run for each activated
// executable document. A failure to queue one document never stops the scan.
func (r *Resolver) Resolve(ctx context.Context, d Dispatcher, req ResolveRequest) (*Result, error) {
	return r.scan(ctx, req, d)
}

func (r *Resolver) scan(ctx context.Context, req ResolveRequest, d Dispatcher) (*Result, error) {
	value := req.JRN()
	log := logger.ChildLogger(r.logger, logger.FieldJRN, value, logger.FieldVerb, req.Verb)

	documents, err := r.docs.ListDocuments(ctx)
	if err != nil {
		err = errors.Wrap(err, "failed to list trigger documents")
		return nil, errors.WithDetailf(err, "JRN: %s", value)
	}

	result := &Result{JRN: value, Verb: req.Verb, Matches: []Match{}}
	for _, doc := range documents {
		result.Scanned++

		fm, err := docs.ParseFrontMatter(doc.Content)
		if err != nil {
			result.ParseErrors++
			log.Warnw("Skipping document with invalid front matter",
				logger.FieldDocID, doc.ID,
				logger.FieldError, err,
			)
			r.record(ctx, d, CodeParseFailed, map[string]any{"docId": doc.ID, "error": err.Error()}, jobs.LogLevelWarn)
			continue
		}
		if len(fm.On) == 0 {
			continue
		}

		matcher, ok := fm.On.First(value, req.Verb)
		if !ok {
			continue
		}
		if doc.ArticleType == "" {
			doc.ArticleType = fm.ArticleTypeOf()
		}
		r.metrics.RecordDocumentMatched(string(req.Verb))

		match := Match{Document: doc, Matcher: matcher}
		data := map[string]any{
			"docId":      doc.ID,
			"docJrn":     doc.JRN,
			"matcherJrn": matcher.JRN,
			"jrn":        value,
		}

		if !doc.Executable() || d == nil {
			log.Infow("Document matched trigger",
				logger.FieldDocID, doc.ID,
				"matcher", matcher.JRN,
				"article_type", doc.ArticleType,
			)
			r.record(ctx, d, CodeMatched, data, jobs.LogLevelInfo)
			result.Matches = append(result.Matches, match)
			continue
		}

		jobID, err := r.dispatch(ctx, d, doc)
		if err != nil {
			r.metrics.RecordDispatchFailure()
			match.Error = errors.SafeString(err)
			log.Errorw("Failed to queue script job for document",
				logger.FieldDocID, doc.ID,
				logger.FieldJobName, r.runScriptJob,
				logger.FieldError, match.Error,
			)
			r.record(ctx, d, CodeDispatchError, map[string]any{"docId": doc.ID, "error": match.Error}, jobs.LogLevelError)
		} else {
			match.JobID = jobID
			data["jobId"] = jobID
		}

		log.Infow("Document triggered",
			logger.FieldDocID, doc.ID,
			"matcher", matcher.JRN,
			logger.FieldJobID, jobID,
		)
		r.record(ctx, d, CodeTriggered, data, jobs.LogLevelInfo)
		result.Matches = append(result.Matches, match)
	}

	log.Debugw("Trigger scan finished",
		"scanned", result.Scanned,
		"matched", len(result.Matches),
		"parse_errors", result.ParseErrors,
	)
	return result, nil
}

// dispatch queues the script job. A panic from the dispatcher is reported
// as an error like any other failure.
func (r *Resolver) dispatch(ctx context.Context, d Dispatcher, doc docs.Document) (jobID string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Newf("queueing %s panicked: %s", r.runScriptJob, errors.SafeString(rec))
		}
	}()

	res, err := d.QueueJob(ctx, jobs.QueueRequest{
		Name:   r.runScriptJob,
		Params: RunScriptParams{DocJRN: doc.JRN, KillSandbox: false},
	})
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", nil
	}
	return res.JobID, nil
}

func (r *Resolver) record(ctx context.Context, d Dispatcher, code string, data map[string]any, level jobs.LogLevel) {
	if d == nil {
		return
	}
	d.Log(ctx, code, data, level)
}
