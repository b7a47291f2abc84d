package protocol

import (
	"encoding/json"
	"testing"

	"github.com/fansqz/jdwp-debugger/constants"
	"github.com/fansqz/jdwp-debugger/debugger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertEvent(t *testing.T) {
	tests := []struct {
		name  string
		event interface{}
		want  string
	}{
		{
			name:  "compile",
			event: debugger.NewCompileEvent(false, "error: ';' expected"),
			want:  `{"event":"compile","success":false,"message":"error: ';' expected"}`,
		},
		{
			name:  "skipped breakpoint",
			event: debugger.NewSkippedBreakpointEvent(constants.SkipNoCodeAtLine, []*debugger.Breakpoint{debugger.NewBreakpoint("MyMainClass.java", 13)}),
			want:  `{"event":"breakpoint","reason":"skipped","skip":"no-code-at-line","breakpoints":[13]}`,
		},
		{
			name:  "stopped",
			event: debugger.NewStoppedEvent(constants.BreakpointStopped, "MyMainClass.java", 8),
			want:  `{"event":"stopped","reason":"breakpoint","line":8}`,
		},
		{
			name: "terminated",
			event: debugger.NewTerminatedEvent(&debugger.SessionReport{
				Outcome: debugger.SessionOutcome{Type: constants.OutcomeHitBreakpoint},
			}),
			want: `{"event":"terminated","outcome":"hit-breakpoint"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(ConvertEvent(tt.event))
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
	assert.Nil(t, ConvertEvent("unknown"))
}
