package testsupport

import (
	"context"
	"net/http"
	"sync"

	"github.com/goliatone/go-kintone-forms/pkg/fields"
	"github.com/goliatone/go-kintone-forms/pkg/layout"
	"github.com/goliatone/go-kintone-forms/pkg/platform"
)

// Call records one request received by a FakeClient. Payloads are deep copies
// taken at call time.
type Call struct {
	Method     string
	App        platform.AppID
	Properties *fields.Properties
	Layout     []layout.Node
	Codes      []string
	Revision   platform.Revision
	Deploy     []platform.DeployTarget
	Revert     bool
}

type fakeApp struct {
	props    *fields.Properties
	nodes    []layout.Node
	revision platform.Revision
	deploy   string
}

// FakeClient is an in-memory platform.Client. Writes bump the app revision and
// are rejected with a revision conflict when the caller's revision is stale.
type FakeClient struct {
	mu       sync.Mutex
	apps     map[platform.AppID]*fakeApp
	failures map[string]error
	calls    []Call
}

var _ platform.Client = (*FakeClient)(nil)

// NewFakeClient returns an empty fake.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		apps:     make(map[platform.AppID]*fakeApp),
		failures: make(map[string]error),
	}
}

// Seed installs an app with the given fields, layout and revision.
func (f *FakeClient) Seed(app platform.AppID, props *fields.Properties, nodes []layout.Node, revision platform.Revision) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	if props == nil {
		props = fields.NewProperties()
	}
	f.apps[app] = &fakeApp{props: props.Clone(), nodes: layout.Clone(nodes), revision: revision}
	return f
}

// FailWith makes every later call to method return err. Method names match
// the platform.Client interface, e.g. "AddFormFields".
func (f *FakeClient) FailWith(method string, err error) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = err
	return f
}

// Calls returns the recorded calls in order.
func (f *FakeClient) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Methods returns the names of the recorded calls in order.
func (f *FakeClient) Methods() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for idx, call := range calls {
		out[idx] = call.Method
	}
	return out
}

// LastCall returns the most recent call to method.
func (f *FakeClient) LastCall(method string) (Call, bool) {
	calls := f.Calls()
	for idx := len(calls) - 1; idx >= 0; idx-- {
		if calls[idx].Method == method {
			return calls[idx], true
		}
	}
	return Call{}, false
}

// Properties returns a copy of the app's current fields.
func (f *FakeClient) Properties(app platform.AppID) *fields.Properties {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.apps[app]
	if !ok {
		return nil
	}
	return state.props.Clone()
}

// GetFormFields implements platform.Client.
func (f *FakeClient) GetFormFields(_ context.Context, app platform.AppID) (*platform.FieldsSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Method: "GetFormFields", App: app})
	state, err := f.lookup("GetFormFields", app)
	if err != nil {
		return nil, err
	}
	return &platform.FieldsSnapshot{Properties: state.props.Clone(), Revision: state.revision}, nil
}

// GetFormLayout implements platform.Client.
func (f *FakeClient) GetFormLayout(_ context.Context, app platform.AppID) (*platform.LayoutSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Method: "GetFormLayout", App: app})
	state, err := f.lookup("GetFormLayout", app)
	if err != nil {
		return nil, err
	}
	return &platform.LayoutSnapshot{Layout: layout.Clone(state.nodes), Revision: state.revision}, nil
}

// AddFormFields implements platform.Client.
func (f *FakeClient) AddFormFields(_ context.Context, app platform.AppID, props *fields.Properties, revision platform.Revision) (platform.Revision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Method: "AddFormFields", App: app, Properties: props.Clone(), Revision: revision})
	state, err := f.write("AddFormFields", app, revision)
	if err != nil {
		return 0, err
	}
	for _, key := range props.Keys() {
		def, _ := props.Get(key)
		state.props.Set(key, def.Clone())
	}
	return f.bump(state), nil
}

// UpdateFormFields implements platform.Client. Labels and attributes present
// in the patch replace the stored ones.
func (f *FakeClient) UpdateFormFields(_ context.Context, app platform.AppID, props *fields.Properties, revision platform.Revision) (platform.Revision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Method: "UpdateFormFields", App: app, Properties: props.Clone(), Revision: revision})
	state, err := f.write("UpdateFormFields", app, revision)
	if err != nil {
		return 0, err
	}
	for _, key := range props.Keys() {
		patch, _ := props.Get(key)
		stored, ok := state.props.Get(key)
		if !ok {
			return 0, &platform.RemoteError{Status: http.StatusBadRequest, Code: platform.CodeInvalidInput, Message: "field " + key + " not found"}
		}
		if patch.Label != "" {
			stored.Label = patch.Label
		}
		if patch.Options != nil {
			stored.Options = patch.Options.Clone()
		}
		for _, attr := range patch.Attrs.Keys() {
			value, _ := patch.Attrs.Get(attr)
			stored.Attrs.Set(attr, value)
		}
	}
	return f.bump(state), nil
}

// DeleteFormFields implements platform.Client.
func (f *FakeClient) DeleteFormFields(_ context.Context, app platform.AppID, codes []string, revision platform.Revision) (platform.Revision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Method: "DeleteFormFields", App: app, Codes: append([]string(nil), codes...), Revision: revision})
	state, err := f.write("DeleteFormFields", app, revision)
	if err != nil {
		return 0, err
	}
	drop := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		drop[code] = struct{}{}
	}
	kept := fields.NewProperties()
	for _, key := range state.props.Keys() {
		if _, gone := drop[key]; gone {
			continue
		}
		def, _ := state.props.Get(key)
		kept.Set(key, def)
	}
	state.props = kept
	return f.bump(state), nil
}

// UpdateFormLayout implements platform.Client.
func (f *FakeClient) UpdateFormLayout(_ context.Context, app platform.AppID, nodes []layout.Node, revision platform.Revision) (platform.Revision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Method: "UpdateFormLayout", App: app, Layout: layout.Clone(nodes), Revision: revision})
	state, err := f.write("UpdateFormLayout", app, revision)
	if err != nil {
		return 0, err
	}
	state.nodes = layout.Clone(nodes)
	return f.bump(state), nil
}

// DeployApps implements platform.Client.
func (f *FakeClient) DeployApps(_ context.Context, targets []platform.DeployTarget, revert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Method: "DeployApps", Deploy: append([]platform.DeployTarget(nil), targets...), Revert: revert})
	for _, target := range targets {
		state, err := f.lookup("DeployApps", target.App)
		if err != nil {
			return err
		}
		if target.Revision != nil && *target.Revision != platform.LatestRevision && *target.Revision != state.revision {
			return conflict(state.revision)
		}
		state.deploy = "SUCCESS"
		if revert {
			state.deploy = "CANCEL"
		}
	}
	return nil
}

// GetDeployStatus implements platform.Client.
func (f *FakeClient) GetDeployStatus(_ context.Context, apps []platform.AppID) ([]platform.DeployStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Method: "GetDeployStatus"})
	out := make([]platform.DeployStatus, 0, len(apps))
	for _, app := range apps {
		state, err := f.lookup("GetDeployStatus", app)
		if err != nil {
			return nil, err
		}
		status := state.deploy
		if status == "" {
			status = "SUCCESS"
		}
		out = append(out, platform.DeployStatus{App: app, Status: status})
	}
	return out, nil
}

func (f *FakeClient) record(call Call) {
	f.calls = append(f.calls, call)
}

func (f *FakeClient) lookup(method string, app platform.AppID) (*fakeApp, error) {
	if err, ok := f.failures[method]; ok {
		return nil, err
	}
	state, ok := f.apps[app]
	if !ok {
		return nil, &platform.RemoteError{
			Status:  http.StatusNotFound,
			Code:    platform.CodeAppNotFound,
			Message: "The app (ID: " + string(app) + ") not found.",
		}
	}
	return state, nil
}

func (f *FakeClient) write(method string, app platform.AppID, revision platform.Revision) (*fakeApp, error) {
	state, err := f.lookup(method, app)
	if err != nil {
		return nil, err
	}
	if revision != platform.LatestRevision && revision != state.revision {
		return nil, conflict(state.revision)
	}
	return state, nil
}

func (f *FakeClient) bump(state *fakeApp) platform.Revision {
	state.revision++
	return state.revision
}

func conflict(current platform.Revision) error {
	return &platform.RemoteError{
		Status:  http.StatusConflict,
		Code:    platform.CodeRevisionConflict,
		Message: "The revision is not the latest. Current revision: " + current.String() + ".",
	}
}
