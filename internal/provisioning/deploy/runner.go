package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/platform/ssh"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning"
)

const phase = "deploy"

// failedExitCode is recorded for steps that failed before the node
// produced an exit status: render, upload or transport errors.
const failedExitCode = -1

// Result is the outcome of one deployment batch on a node.
type Result struct {
	Node   string
	Steps  []inventory.Action
	Passed bool
}

// Runner executes scripts and commands on nodes and records each step.
type Runner struct {
	pctx *provisioning.Context
}

// NewRunner creates a runner bound to the run context.
func NewRunner(pctx *provisioning.Context) *Runner {
	return &Runner{pctx: pctx}
}

// Deploy dials node and runs its layout's scripts. A node whose layout
// has no scripts passes without being dialed. A connection failure is
// returned as an error and leaves the inventory untouched.
func (r *Runner) Deploy(ctx context.Context, node *inventory.Node, env map[string]string) (*Result, error) {
	if node.Layout.Scripts == "" {
		return &Result{Node: node.Name, Passed: true}, nil
	}
	return r.DeployDir(ctx, node, node.Layout.Scripts, env)
}

// DeployDir dials node and runs the scripts of dir.
func (r *Runner) DeployDir(ctx context.Context, node *inventory.Node, dir string, env map[string]string) (*Result, error) {
	remote, err := r.pctx.Dialer.Dial(ctx, node)
	if err != nil {
		provisioning.LogResourceFailed(r.pctx.Observer, phase, "connection", node.Name, err)
		return nil, fmt.Errorf("failed to connect to %s: %w", node.Name, err)
	}
	defer func() { _ = remote.Close() }()

	return r.RunScripts(ctx, remote, dir, NewRenderContext(r.pctx.Plan, node, env))
}

// RunScripts uploads the teardown script, then runs every step of dir on
// remote. Each step is appended to the node's action log as soon as it
// finishes. Only inventory and context errors end the batch early.
func (r *Runner) RunScripts(ctx context.Context, remote provisioning.Remote, dir string, rc RenderContext) (*Result, error) {
	node := rc.Node
	steps, teardown, err := CollectScripts(dir)
	if err != nil {
		return nil, err
	}

	obs := r.pctx.Observer.WithFields(map[string]string{"node": node.Name, "layout": node.Layout.Name})
	res := &Result{Node: node.Name, Passed: true}

	if teardown != nil {
		if err := r.record(ctx, obs, res, r.uploadTeardown(ctx, remote, *teardown, rc)); err != nil {
			return res, err
		}
	}

	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		obs.Progress(phase, i+1, len(steps))
		if err := r.record(ctx, obs, res, r.runStep(ctx, remote, s, rc)); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Exec runs cmd on remote and records it on node. A nonzero exit is not
// an error; transport failures are recorded and returned.
func (r *Runner) Exec(ctx context.Context, remote provisioning.Remote, node *inventory.Node, cmd string) (*inventory.Action, error) {
	action := inventory.Action{Command: cmd}
	out, execErr := remote.Exec(ctx, cmd)
	if execErr != nil {
		action = failed(action, "exec", execErr)
	} else {
		action.ExitCode = &out.ExitCode
		action.Stdout = out.Stdout
		action.Stderr = out.Stderr
	}
	action.Timestamp = r.pctx.Now()

	if _, err := r.pctx.Store.AppendAction(ctx, node.Name, action); err != nil {
		return &action, fmt.Errorf("failed to record action on %s: %w", node.Name, err)
	}
	if execErr != nil {
		return &action, fmt.Errorf("failed to run command on %s: %w", node.Name, execErr)
	}
	return &action, nil
}

func (r *Runner) runStep(ctx context.Context, remote provisioning.Remote, s Script, rc RenderContext) inventory.Action {
	target := path.Join(remotePath(rc.Layout), s.Name)
	action := inventory.Action{
		Command: target,
		Extra:   map[string]string{"script": s.Name},
	}

	content, err := renderFile(s, rc)
	if err != nil {
		return failed(action, "render", err)
	}
	if err := remote.Upload(ctx, bytes.NewReader(content), target, 0o755); err != nil {
		return failed(action, "upload", err)
	}
	out, err := remote.Exec(ctx, ssh.QuotePath(target))
	if err != nil {
		return failed(action, "exec", err)
	}

	action.ExitCode = &out.ExitCode
	action.Stdout = out.Stdout
	action.Stderr = out.Stderr
	return action
}

// uploadTeardown places the rendered teardown script on the node. The
// recorded action has no exit status, even when the upload fails, so it
// never decides Passed.
func (r *Runner) uploadTeardown(ctx context.Context, remote provisioning.Remote, s Script, rc RenderContext) inventory.Action {
	action := inventory.Action{
		Command: "upload " + TeardownPath,
		Extra:   map[string]string{"script": s.Name},
	}
	content, err := renderFile(s, rc)
	if err != nil {
		return markFailed(action, "render", err)
	}
	if err := remote.Upload(ctx, bytes.NewReader(content), TeardownPath, 0o755); err != nil {
		return markFailed(action, "upload", err)
	}
	return action
}

func (r *Runner) record(ctx context.Context, obs provisioning.Observer, res *Result, action inventory.Action) error {
	action.Timestamp = r.pctx.Now()
	res.Steps = append(res.Steps, action)
	if action.Failed() {
		res.Passed = false
	}

	stored, err := r.pctx.Store.AppendAction(ctx, res.Node, action)
	if err != nil {
		return fmt.Errorf("failed to record action on %s: %w", res.Node, err)
	}

	if !action.HasStatus() {
		ev := provisioning.Event{
			Type:     provisioning.EventResourceCreated,
			Phase:    phase,
			Resource: res.Node,
			Message:  action.Command,
		}
		if stage := action.Extra["failed"]; stage != "" {
			ev.Type = provisioning.EventResourceFailed
			ev.Message = fmt.Sprintf("%s failed at %s", action.Command, stage)
			ev.Err = errors.New(action.Stderr)
		}
		obs.Event(ev)
		return nil
	}

	r.pctx.Metrics.ScriptStep(stored.Layout.Name, !action.Failed())
	ev := provisioning.Event{
		Type:     provisioning.EventResourceCreated,
		Phase:    phase,
		Resource: res.Node,
		Message:  fmt.Sprintf("%s exited %d", action.Command, *action.ExitCode),
		Fields:   map[string]string{"exit_code": strconv.Itoa(*action.ExitCode)},
	}
	if action.Failed() {
		ev.Type = provisioning.EventResourceFailed
	}
	obs.Event(ev)
	return nil
}

// failed marks a step that never produced an exit status as failed.
func failed(action inventory.Action, stage string, err error) inventory.Action {
	code := failedExitCode
	action = markFailed(action, stage, err)
	action.ExitCode = &code
	return action
}

// markFailed records the failing stage without giving the action a status.
func markFailed(action inventory.Action, stage string, err error) inventory.Action {
	action.Stderr = err.Error()
	if action.Extra == nil {
		action.Extra = map[string]string{}
	}
	action.Extra["failed"] = stage
	return action
}

func remotePath(l config.Layout) string {
	if l.RemotePath == "" {
		return config.DefaultRemotePath
	}
	return l.RemotePath
}
