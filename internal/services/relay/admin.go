package relaysvc

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/courierd/courier/internal/errdefs"
	"github.com/courierd/courier/internal/ledger"
)

// jobFilter wraps a compiled CEL program used by the admin listing to
// narrow the returned jobs. When disabled, Eval always returns true.
type jobFilter struct {
	prog    cel.Program
	enabled bool
}

func newJobFilter(expr string) (jobFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return jobFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("queue", cel.StringType),
		cel.Variable("source", cel.StringType),
		cel.Variable("destination", cel.StringType),
		cel.Variable("phase", cel.StringType),
		cel.Variable("retry", cel.StringType),
		cel.Variable("created_ms", cel.IntType),
		// Exposes the parsed JSON payload for field filtering
		cel.Variable("payload", cel.DynType),
		cel.Variable("error_payload", cel.StringType),
		// Current time in ms for windowed filters
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return jobFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return jobFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return jobFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return jobFilter{}, err
	}
	return jobFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the compiled expression against a job. When disabled, returns true.
func (f jobFilter) Eval(j *ledger.Job) bool {
	if !f.enabled {
		return true
	}
	var payload any
	_ = json.Unmarshal([]byte(j.Payload), &payload)
	out, _, err := f.prog.Eval(map[string]any{
		"queue":         j.QueueGUID,
		"source":        j.SourceGUID,
		"destination":   j.DestGUID,
		"phase":         string(j.Phase),
		"retry":         string(j.Retry),
		"created_ms":    j.CreatedAtMs,
		"payload":       payload,
		"error_payload": j.ErrorPayload,
		"now_ms":        time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// ListJobs returns up to limit jobs of the named ledger, oldest first,
// optionally narrowed by a CEL expression.
func (s *Service) ListJobs(ledgerName, filterExpr string, limit int) ([]ledger.Job, error) {
	led, err := s.ledgerByName(ledgerName)
	if err != nil {
		return nil, err
	}
	filt, err := newJobFilter(filterExpr)
	if err != nil {
		return nil, errdefs.Invalidf("filter %q", filterExpr)
	}
	scan := limit
	if filt.enabled {
		// Filtered listings scan the full ledger, the limit applies
		// to matches.
		scan = 0
	}
	jobs, err := led.ListJobs(scan)
	if err != nil {
		return nil, err
	}
	if !filt.enabled {
		return jobs, nil
	}
	out := make([]ledger.Job, 0, len(jobs))
	for i := range jobs {
		if !filt.Eval(&jobs[i]) {
			continue
		}
		out = append(out, jobs[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
