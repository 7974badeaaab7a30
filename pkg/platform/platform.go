package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-kintone-forms/pkg/fields"
	"github.com/goliatone/go-kintone-forms/pkg/layout"
)

// AppID identifies an app on the platform. The API accepts it as a number or
// a numeric string.
type AppID string

// UnmarshalJSON accepts string and numeric ids.
func (id *AppID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*id = AppID(strings.TrimSpace(str))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("platform: app id must be a string or number: %w", err)
	}
	*id = AppID(num.String())
	return nil
}

// Validate checks that the id is a positive integer.
func (id AppID) Validate() error {
	value, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil || value <= 0 {
		return fmt.Errorf("platform: app id %q must be a positive integer", string(id))
	}
	return nil
}

// Revision is the optimistic-concurrency counter of an app's settings.
type Revision int64

// LatestRevision skips the revision check on the platform.
const LatestRevision Revision = -1

// MarshalJSON writes the revision as a string, the form the API returns.
func (r Revision) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatInt(int64(r), 10))
}

// UnmarshalJSON accepts string and numeric revisions.
func (r *Revision) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*r = LatestRevision
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*r = LatestRevision
		return nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("platform: invalid revision %q", raw)
	}
	*r = Revision(value)
	return nil
}

func (r Revision) String() string {
	return strconv.FormatInt(int64(r), 10)
}

// FieldsSnapshot is a point-in-time read of an app's fields.
type FieldsSnapshot struct {
	Properties *fields.Properties `json:"properties"`
	Revision   Revision           `json:"revision"`
}

// LayoutSnapshot is a point-in-time read of an app's form layout.
type LayoutSnapshot struct {
	Layout   []layout.Node `json:"layout"`
	Revision Revision      `json:"revision"`
}

// DeployTarget names one app to deploy from preview to live.
type DeployTarget struct {
	App      AppID     `json:"app"`
	Revision *Revision `json:"revision,omitempty"`
}

// DeployStatus reports the deployment state of one app.
type DeployStatus struct {
	App    AppID  `json:"app"`
	Status string `json:"status"`
}

// Client is the remote schema API. Implementations return *RemoteError for
// failures reported by the platform.
type Client interface {
	GetFormFields(ctx context.Context, app AppID) (*FieldsSnapshot, error)
	GetFormLayout(ctx context.Context, app AppID) (*LayoutSnapshot, error)
	AddFormFields(ctx context.Context, app AppID, props *fields.Properties, revision Revision) (Revision, error)
	UpdateFormFields(ctx context.Context, app AppID, props *fields.Properties, revision Revision) (Revision, error)
	DeleteFormFields(ctx context.Context, app AppID, codes []string, revision Revision) (Revision, error)
	UpdateFormLayout(ctx context.Context, app AppID, nodes []layout.Node, revision Revision) (Revision, error)
	DeployApps(ctx context.Context, targets []DeployTarget, revert bool) error
	GetDeployStatus(ctx context.Context, apps []AppID) ([]DeployStatus, error)
}
