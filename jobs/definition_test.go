package jobs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
)

type greetParams struct {
	Name  string `json:"name"`
	Times int    `json:"times"`
}

func (p *greetParams) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.Times < 0 {
		return errors.New("times must not be negative")
	}
	return nil
}

func TestDefine_BuildsDefinition(t *testing.T) {
	var got greetParams
	def := Define("demo:greet", func(ctx context.Context, jc *JobContext, p greetParams) error {
		got = p
		return nil
	}).
		Category("demo").
		Title("Greet").
		Description("Says hello").
		TriggerOn("demo:hello", "demo:wave").
		ShowInDashboard().
		KeepCardAfterCompletion().
		ExcludeFromStats().
		Build()

	assert.Equal(t, "demo:greet", def.Name)
	assert.Equal(t, "demo", def.Category)
	assert.Equal(t, "Greet", def.Title)
	assert.Equal(t, []string{"demo:hello", "demo:wave"}, def.TriggerEvents)
	assert.True(t, def.ShowInDashboard)
	assert.True(t, def.KeepCardAfterCompletion)
	assert.True(t, def.ExcludeFromStats)
	require.NoError(t, def.Validate())

	err := def.Handler(context.Background(), nil, json.RawMessage(`{"name":"ada","times":2}`))
	require.NoError(t, err)
	assert.Equal(t, greetParams{Name: "ada", Times: 2}, got)
}

func TestTypedSchema_Validate(t *testing.T) {
	tests := []struct {
		name    string
		strict  bool
		params  string
		wantErr bool
	}{
		{"valid", false, `{"name":"ada"}`, false},
		{"unknown field ignored", false, `{"name":"ada","extra":true}`, false},
		{"unknown field rejected when strict", true, `{"name":"ada","extra":true}`, true},
		{"wrong type", false, `{"name":42}`, true},
		{"validator rejects", false, `{"name":""}`, true},
		{"validator rejects negative", false, `{"name":"ada","times":-1}`, true},
		{"null is validated as an empty object", false, `null`, true},
		{"not an object", false, `[1,2]`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := TypedSchema[greetParams]{Strict: tt.strict}.Validate(json.RawMessage(tt.params))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsInvalidRequestError(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestJobDefinition_TriggeredBy(t *testing.T) {
	def := Define("demo:push", func(ctx context.Context, jc *JobContext, p struct{}) error { return nil }).
		TriggerOn("github:push").
		ShouldTrigger(func(eventName string, payload any) bool {
			m, ok := payload.(map[string]any)
			return ok && m["ref"] == "refs/heads/main"
		}).
		Build()

	assert.True(t, def.TriggeredBy("github:push", map[string]any{"ref": "refs/heads/main"}))
	assert.False(t, def.TriggeredBy("github:push", map[string]any{"ref": "refs/heads/dev"}))
	assert.False(t, def.TriggeredBy("github:installation:created", map[string]any{"ref": "refs/heads/main"}))

	always := Define("demo:any", func(ctx context.Context, jc *JobContext, p struct{}) error { return nil }).
		TriggerOn("demo:event").
		Build()
	assert.True(t, always.TriggeredBy("demo:event", nil))
}

func TestJobDefinition_ValidateMissingFields(t *testing.T) {
	err := (&JobDefinition{}).Validate()
	assert.True(t, errors.IsInvalidRequestError(err))

	err = (&JobDefinition{Name: "demo:nohandler"}).Validate()
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestJobDefinition_InfoOmitsHandler(t *testing.T) {
	def := Define("demo:info", func(ctx context.Context, jc *JobContext, p struct{}) error { return nil }).
		Category("demo").
		TriggerOn("demo:event").
		Build()

	info := def.Info()
	assert.Equal(t, "demo:info", info.Name)
	assert.Equal(t, "demo", info.Category)
	assert.Equal(t, []string{"demo:event"}, info.TriggerEvents)

	info.TriggerEvents[0] = "mutated"
	assert.Equal(t, "demo:event", def.TriggerEvents[0])
}
