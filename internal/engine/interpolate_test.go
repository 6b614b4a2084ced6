package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpolate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]string
		want     string
	}{
		{
			name:     "simple replacement",
			template: "{{name}}, welcome!",
			vars:     map[string]string{"name": "Ada"},
			want:     "Ada, welcome!",
		},
		{
			name:     "unresolved placeholder stays verbatim",
			template: "{{name}}, welcome!",
			vars:     map[string]string{},
			want:     "{{name}}, welcome!",
		},
		{
			name:     "multiple placeholders",
			template: "Hi {{name}}, your email {{email}} is saved",
			vars:     map[string]string{"name": "Ada", "email": "ada@x.com"},
			want:     "Hi Ada, your email ada@x.com is saved",
		},
		{
			name:     "mixed resolved and unresolved",
			template: "{{name}} from {{company}}",
			vars:     map[string]string{"name": "Ada"},
			want:     "Ada from {{company}}",
		},
		{
			name:     "whitespace inside braces",
			template: "Hello {{ name }}",
			vars:     map[string]string{"name": "Ada"},
			want:     "Hello Ada",
		},
		{
			name:     "empty value replaces",
			template: "[{{note}}]",
			vars:     map[string]string{"note": ""},
			want:     "[]",
		},
		{
			name:     "no placeholders",
			template: "plain text",
			vars:     map[string]string{"name": "Ada"},
			want:     "plain text",
		},
		{
			name:     "empty template",
			template: "",
			vars:     map[string]string{"name": "Ada"},
			want:     "",
		},
		{
			name:     "nil vars",
			template: "{{name}}",
			vars:     nil,
			want:     "{{name}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Interpolate(tt.template, tt.vars))
		})
	}
}
