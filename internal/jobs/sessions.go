package jobs

import (
	"context"
	"fmt"
	"io"

	authdomain "github.com/smallbiznis/posreport/internal/auth/domain"
)

const SessionsPrune = "sessions:prune"

// SessionPruneJob deletes sessions idle past the configured window. Date options are
// ignored.
type SessionPruneJob struct {
	auth authdomain.Service
}

func NewSessionPruneJob(auth authdomain.Service) *SessionPruneJob {
	return &SessionPruneJob{auth: auth}
}

func (j *SessionPruneJob) Name() string        { return SessionsPrune }
func (j *SessionPruneJob) Description() string { return "delete idle user sessions" }

func (j *SessionPruneJob) Run(ctx context.Context, _ Options, out io.Writer) error {
	n, err := j.auth.PruneIdleSessions(ctx)
	if err != nil {
		return fmt.Errorf("prune sessions: %w", err)
	}
	fmt.Fprintf(out, "sessions: pruned %d idle\n", n)
	return nil
}
