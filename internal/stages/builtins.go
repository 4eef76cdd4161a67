// Package stages aggregates every built-in stage type's registry
// constructor into one Register call, the way the teacher's cmd-level
// wiring loads its fixed StageType enum at startup. Each constructor except
// file's only builds the stage's Go value; parameter parsing against the
// stage's own Schema happens centrally, in graph.Runtime's materialize pass.
// The file constructor also parses file.Schema itself, because the file
// stage's IO kinds depend on its mode and type parameters.
package stages

import (
	"github.com/speechflow/speechflow/internal/registry"
	"github.com/speechflow/speechflow/internal/stage"
	"github.com/speechflow/speechflow/internal/stages/asr"
	"github.com/speechflow/speechflow/internal/stages/file"
	"github.com/speechflow/speechflow/internal/stages/sentence"
	"github.com/speechflow/speechflow/internal/stages/subtitle"
	"github.com/speechflow/speechflow/internal/stages/tts"
	"github.com/speechflow/speechflow/internal/stages/vad"
)

// RegisterBuiltins registers every built-in stage type with reg. Safe to
// call once at process startup, before any Construct call.
func RegisterBuiltins(reg *registry.Registry) {
	reg.Register("vad", func(id string, _ map[string]any, _ []any) (stage.Stage, error) {
		return vad.New(id), nil
	})
	reg.Register("sentence", func(id string, _ map[string]any, _ []any) (stage.Stage, error) {
		return sentence.New(id), nil
	})
	reg.Register("a2t-asr", func(id string, _ map[string]any, _ []any) (stage.Stage, error) {
		return asr.New(id), nil
	})
	reg.Register("t2a-tts", func(id string, _ map[string]any, _ []any) (stage.Stage, error) {
		return tts.New(id), nil
	})
	reg.Register("t2t-subtitle", func(id string, _ map[string]any, _ []any) (stage.Stage, error) {
		return subtitle.NewSerializer(id), nil
	})
	reg.Register("t2t-subtitle-parse", func(id string, _ map[string]any, _ []any) (stage.Stage, error) {
		return subtitle.NewParser(id), nil
	})
	reg.Register("file", func(id string, options map[string]any, positional []any) (stage.Stage, error) {
		params, err := file.Schema.Parse(options, positional)
		if err != nil {
			return nil, err
		}
		return file.NewWithParams(id, params), nil
	})
}
