package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
)

func TestContext_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ctx     Context
		wantErr bool
	}{
		{"complete", New("acme", "docs"), false},
		{"zero", Context{}, true},
		{"missing org", New("acme", ""), true},
		{"missing tenant", New("", "docs"), true},
		{"whitespace only", New("  ", "\t"), true},
		{"separator in org", New("a", "b/c"), true},
		{"separator in tenant", New("a/b", "c"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ctx.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.True(t, errors.Is(err, ErrNoTenantContext))
		})
	}
}

func TestContext_Key(t *testing.T) {
	assert.Equal(t, "acme/docs", New(" acme ", "docs").Key())
	assert.True(t, Context{}.IsZero())
	assert.False(t, New("a", "").IsZero())
}
