package manager

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogPublisher_WritesEvents(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(zerolog.New(&buf).Level(zerolog.DebugLevel))
	p.Publish(Event{Name: EventLoaded, PipelineID: "demo", Generation: 3, Fields: map[string]any{"elapsed_ms": 12}})
	out := buf.String()
	for _, want := range []string{`"event":"loaded"`, `"pipeline":"demo"`, `"generation":3`, `"elapsed_ms":12`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %s", want, out)
		}
	}
}
