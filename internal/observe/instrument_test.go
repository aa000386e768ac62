package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/example/spellvox/pkg/provider/llm"
	llmmock "github.com/example/spellvox/pkg/provider/llm/mock"
	"github.com/example/spellvox/pkg/provider/stt"
	sttmock "github.com/example/spellvox/pkg/provider/stt/mock"
	"github.com/example/spellvox/pkg/provider/tts"
	ttsmock "github.com/example/spellvox/pkg/provider/tts/mock"
)

func TestInstrumentSTTRecordsSuccess(t *testing.T) {
	m, reader := newTestMetrics(t)
	mock := &sttmock.Provider{Transcript: "bee eye gee"}
	p := InstrumentSTT(mock, "openai", m)

	text, err := p.Transcribe(context.Background(), stt.Request{Audio: []byte("clip")})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "bee eye gee" {
		t.Fatalf("transcript = %q, want the mock's", text)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("CallCount = %d, want 1", mock.CallCount())
	}

	rm := collect(t, reader)
	if got, ok := counterValue(t, rm, "spellvox.provider.requests", "status", "ok"); !ok || got != 1 {
		t.Errorf("ok requests = %d (found=%v), want 1", got, ok)
	}
	if got, ok := counterValue(t, rm, "spellvox.provider.requests", "kind", "stt"); !ok || got != 1 {
		t.Errorf("stt requests = %d (found=%v), want 1", got, ok)
	}
	met := findMetric(rm, "spellvox.provider.duration")
	if met == nil {
		t.Fatal("duration histogram not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 || hist.DataPoints[0].Count != 1 {
		t.Error("duration sample missing, want 1 recording")
	}
}

func TestInstrumentLLMCountsErrors(t *testing.T) {
	m, reader := newTestMetrics(t)
	mock := &llmmock.Provider{Err: errors.New("backend down")}
	p := InstrumentLLM(mock, "ollama", m)

	if _, err := p.Complete(context.Background(), llm.Request{}); err == nil {
		t.Fatal("expected the mock's error")
	}

	rm := collect(t, reader)
	if got, ok := counterValue(t, rm, "spellvox.provider.requests", "status", "error"); !ok || got != 1 {
		t.Errorf("error requests = %d (found=%v), want 1", got, ok)
	}
	if got, ok := counterValue(t, rm, "spellvox.provider.errors", "kind", "llm"); !ok || got != 1 {
		t.Errorf("provider errors = %d (found=%v), want 1", got, ok)
	}
}

func TestInstrumentTTSRecordsBothMethods(t *testing.T) {
	m, reader := newTestMetrics(t)
	mock := &ttsmock.Provider{
		Clip:      &tts.Clip{Audio: []byte("mp3"), ContentType: "audio/mpeg"},
		VoiceList: []string{"nova"},
	}
	p := InstrumentTTS(mock, "openai", m)

	if _, err := p.Synthesize(context.Background(), tts.Request{Text: "cat"}); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if _, err := p.Voices(context.Background()); err != nil {
		t.Fatalf("Voices: %v", err)
	}

	rm := collect(t, reader)
	if got, ok := counterValue(t, rm, "spellvox.provider.requests", "kind", "tts"); !ok || got != 2 {
		t.Errorf("tts requests = %d (found=%v), want 2", got, ok)
	}
}
