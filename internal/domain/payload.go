package domain

// PayloadType classifies an external input.
type PayloadType string

const (
	PayloadFile       PayloadType = "file"
	PayloadURL        PayloadType = "url"
	PayloadText       PayloadType = "text"
	PayloadCommandArg PayloadType = "command_arg"
)

// Payload is one unit of external input: a file path, URL, raw text, or
// command-line argument. It is constructed once, consumed once by prefill,
// and never persisted.
type Payload struct {
	Type   PayloadType
	Source string
	Meta   map[string]any
}

// NewPayload creates a payload with an empty meta map.
func NewPayload(typ PayloadType, source string) Payload {
	return Payload{Type: typ, Source: source, Meta: map[string]any{}}
}

// AllFiles returns the full list of files behind a multi-file drop,
// or nil when the payload carries a single source.
func (p Payload) AllFiles() []string {
	if p.Meta == nil {
		return nil
	}
	files, _ := p.Meta["all_files"].([]string)
	return files
}
