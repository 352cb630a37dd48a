package skills

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/bytegate/pkg/credentials"
	"github.com/harunnryd/bytegate/pkg/errorsx"
	"github.com/harunnryd/bytegate/pkg/logging"
	"github.com/harunnryd/bytegate/pkg/metrics"
	"github.com/harunnryd/bytegate/pkg/resilience"
)

type Options struct {
	Timeout      time.Duration
	Retries      int
	RetryBackoff time.Duration
	Observer     metrics.Observer
	Logger       *slog.Logger
}

// Request is one invocation from a session.
type Request struct {
	SessionID string
	Name      string
	Creds     credentials.Store
}

// Dispatcher runs skills by name. It is shared by all sessions and holds no
// per-session state.
type Dispatcher struct {
	skills map[string]Skill
	opts   Options
	retry  resilience.RetryPolicy
	obs    metrics.Observer
	log    *slog.Logger
}

func NewDispatcher(opts Options, list ...Skill) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 150 * time.Millisecond
	}
	base := opts.Logger
	if base == nil {
		base = slog.Default()
	}
	obs := opts.Observer
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	retry := resilience.NewRetryPolicy(opts.Retries, opts.RetryBackoff)
	retry.Retryable = func(err error) bool {
		return errorsx.HasReason(err, errorsx.ReasonTransportFault)
	}
	d := &Dispatcher{
		skills: make(map[string]Skill, len(list)),
		opts:   opts,
		retry:  retry,
		obs:    obs,
		log:    logging.NewComponentLogger(base, "skills"),
	}
	for _, s := range list {
		d.Register(s)
	}
	return d
}

// Register adds or replaces a skill.
func (d *Dispatcher) Register(s Skill) {
	if s == nil {
		return
	}
	d.skills[strings.ToLower(s.Name())] = s
}

func (d *Dispatcher) Known(name string) bool {
	_, ok := d.skills[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Invoke runs the named skill and returns the reply text. ok is false for an
// unknown name, in which case nothing should be sent.
func (d *Dispatcher) Invoke(ctx context.Context, req Request) (reply string, ok bool) {
	name := strings.ToLower(strings.TrimSpace(req.Name))
	s, found := d.skills[name]
	if !found {
		d.log.Warn("skill_unknown", "session_id", req.SessionID, "name", req.Name)
		return "", false
	}
	started := time.Now()
	out, err := d.call(ctx, s, req.Creds.Get(s.Credential()))
	outcome := "ok"
	if err != nil {
		outcome = string(errorsx.Reason(err))
		d.log.Warn("skill_failed", "session_id", req.SessionID, "name", name, "reason", outcome, "error", err)
		out = s.Reply(err)
	}
	metrics.Latency(d.obs, metrics.EventSkillLatency, time.Since(started), map[string]string{
		metrics.TagSessionID: req.SessionID,
		metrics.TagProvider:  name,
		metrics.TagOutcome:   outcome,
	})
	return out, true
}

func (d *Dispatcher) call(ctx context.Context, s Skill, credential string) (string, error) {
	if strings.TrimSpace(credential) == "" {
		return "", errorsx.New(errorsx.ReasonMissingCredential, "%s: no key", s.Name())
	}
	var out string
	err := d.retry.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
		res, err := s.Run(ctx, credential)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return errorsx.Wrap(err, errorsx.ReasonTransportFault)
			}
			return err
		}
		out = res
		return nil
	})
	return out, err
}
