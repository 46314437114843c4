package fallback

import "context"

// Span locates an annotation in the request source. Start and End are byte
// offsets into Request.Source, End exclusive. Line is 1-based.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
	Line  int `json:"line"`
}

// Annotation is one finding about the request source.
type Annotation struct {
	Span    Span           `json:"span"`
	Payload map[string]any `json:"payload"`
}

// Clone returns a copy of a whose payload shares no maps or slices with a.
func (a Annotation) Clone() Annotation {
	if a.Payload != nil {
		a.Payload = cloneValue(a.Payload).(map[string]any)
	}
	return a
}

func cloneAnnotations(anns []Annotation) []Annotation {
	if anns == nil {
		return nil
	}
	out := make([]Annotation, len(anns))
	for i, a := range anns {
		out[i] = a.Clone()
	}
	return out
}

// cloneValue deep-copies the JSON-shaped values payloads hold.
func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Request is the input every tier annotates.
type Request struct {
	Source   string `json:"source"`
	Language string `json:"language,omitempty"`
	Path     string `json:"path,omitempty"`
}

// Annotator produces annotations for a request.
type Annotator interface {
	Annotate(ctx context.Context, req Request) ([]Annotation, error)
}

// AnnotatorFunc adapts a function to Annotator.
type AnnotatorFunc func(ctx context.Context, req Request) ([]Annotation, error)

// Annotate calls f(ctx, req).
func (f AnnotatorFunc) Annotate(ctx context.Context, req Request) ([]Annotation, error) {
	return f(ctx, req)
}
