package quiz

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/hazyhaar/quizagent/kit"
	"github.com/hazyhaar/quizagent/quiz/internal/browser"
	"github.com/hazyhaar/quizagent/quiz/internal/resolve"
	"github.com/hazyhaar/quizagent/quiz/internal/snapshot"
	"github.com/hazyhaar/quizagent/quiz/internal/solve"
)

const maxLoggedTask = 500

// Run drives one session to its end and returns why it stopped. The page
// is opened once and closed on every return path, panics included. Pages
// are handled strictly one after another; the deadline is checked before
// each navigation and a step already under way is allowed to finish.
func (a *Agent) Run(ctx context.Context, s *Session) (reason Reason) {
	ctx = kit.WithSessionID(ctx, s.ID)
	log := a.logger.With("session_id", s.ID)
	a.metrics.sessionStarted()
	a.registry.put(*s)

	defer func() {
		if r := recover(); r != nil {
			log.Error("quiz: session panic", "panic", r, "stack", string(debug.Stack()))
			reason = ReasonInternalError
		}
		s.Reason = reason
		s.Finished = a.now()
		a.registry.put(*s)
		a.metrics.sessionFinished(reason)
		log.Info("quiz: session finished",
			"reason", reason,
			"pages", s.Pages,
			"elapsed", s.Finished.Sub(s.Start).String())
	}()

	page, err := a.opener.OpenPage(ctx)
	if err != nil {
		log.Error("quiz: session aborted", "error", &BrowserError{Cause: err})
		return ReasonBrowserFailed
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Warn("quiz: close page", "error", err)
		}
	}()

	for s.CurrentURL != "" {
		if !a.now().Before(s.Deadline) {
			log.Warn("quiz: stopping", "error", ErrDeadlineExceeded, "url", s.CurrentURL, "deadline", s.Deadline)
			return ReasonDeadlineExceeded
		}
		if s.Pages >= a.cfg.MaxPages {
			log.Warn("quiz: page limit reached", "max_pages", a.cfg.MaxPages, "url", s.CurrentURL)
			return ReasonPageLimit
		}

		next, end := a.step(ctx, log, s, page)
		if end != "" {
			return end
		}
		s.CurrentURL = next
		a.registry.put(*s)
	}
	return ReasonCompleted
}

// step handles one page. It returns the next URL, or a non-empty reason
// when the chain stops here.
func (a *Agent) step(ctx context.Context, log *slog.Logger, s *Session, page browser.Page) (string, Reason) {
	s.Pages++
	url := s.CurrentURL
	log = log.With("url", url, "page", s.Pages)

	// 1. navigate
	t := a.now()
	navCtx, cancel := context.WithTimeout(ctx, a.cfg.NavigationTimeout)
	err := page.Navigate(navCtx, url)
	cancel()
	a.stepDone(log, "navigate", t)
	if err != nil {
		log.Warn("quiz: navigation failed, reading partial page", "error", &NavigationError{URL: url, Cause: err})
	}

	// 2. extract
	t = a.now()
	capCtx, cancel := context.WithTimeout(ctx, a.cfg.NavigationTimeout)
	snap, err := snapshot.Capture(capCtx, page, a.cfg.MaxScriptChars)
	cancel()
	a.stepDone(log, "extract", t,
		"links", len(snap.Links), "forms", len(snap.Forms), "scripts", len(snap.Scripts), "has_pre", snap.Pre != nil)
	if err != nil {
		log.Warn("quiz: partial snapshot", "error", err)
	}

	// 3. decode
	t = a.now()
	task := a.decoder.Decode(snap)
	a.stepDone(log, "decode", t, "task", clip(task, maxLoggedTask))

	// 4. solve
	pageURL := snap.URL
	if pageURL == "" {
		pageURL = url
	}
	t = a.now()
	payload, rule := a.engine.Solve(ctx, solve.Input{
		Task:    task,
		PageURL: pageURL,
		Email:   s.Email,
		Secret:  s.Secret,
	}, boundedShot{page: page, timeout: a.cfg.NavigationTimeout})
	a.metrics.pageSolved(rule)
	a.stepDone(log, "solve", t, "rule", rule, "answer", payload.Answer())

	// 5. resolve
	target, source := resolve.Resolve(snap)
	if target == "" {
		a.diagnose(ctx, log, s, page, ErrNoSubmitTarget.Error())
		return "", ReasonNoSubmitTarget
	}
	log.Info("quiz: submit target", "step", "resolve", "target", target, "source", source)

	// 6. submit
	t = a.now()
	res, err := a.submitter.Submit(ctx, target, payload)
	a.stepDone(log, "submit", t)
	if err != nil {
		log.Error("quiz: submit failed", "error", err)
		return "", ReasonSubmitFailed
	}
	log.Info("quiz: submitted",
		"target", target,
		"status", res.StatusCode,
		"correct", boolAttr(res.Correct),
		"next", res.NextURL)

	// 7. follow
	if res.NextURL == "" {
		return "", ReasonCompleted
	}
	if res.Message != "" {
		log.Warn("quiz: endpoint reported a problem, following next url anyway",
			"message", res.Message, "next", res.NextURL)
	}
	return res.NextURL, ""
}

func (a *Agent) stepDone(log *slog.Logger, step string, start time.Time, attrs ...any) {
	d := a.now().Sub(start)
	a.metrics.observeStep(step, d)
	log.Info("quiz: step done", append([]any{"step", step, "duration_ms", d.Milliseconds()}, attrs...)...)
}

func boolAttr(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return truncateRunes(s, n) + "…"
}

// boundedShot caps each screenshot at timeout.
type boundedShot struct {
	page    browser.Page
	timeout time.Duration
}

func (b boundedShot) Screenshot(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.page.Screenshot(ctx)
}
