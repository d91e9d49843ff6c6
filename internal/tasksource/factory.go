package tasksource

import (
	"fmt"
	"strings"
	"time"
)

// SourceSpec specifies how to create a task source.
type SourceSpec struct {
	Type   SourceType
	Config map[string]string
}

// ParseSourceSpec parses a source specification string.
// Format: "type" or "type:param1=value1,param2=value2"
// Examples:
//   - "dida"
//   - "dida:url=https://api.ticktick.com/open/v1"
//   - "file:path=tasks.yaml"
func ParseSourceSpec(spec string) (SourceSpec, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return SourceSpec{}, fmt.Errorf("empty source spec")
	}

	parts := strings.SplitN(spec, ":", 2)
	sourceType := SourceType(parts[0])
	config := make(map[string]string)

	if len(parts) == 2 && parts[1] != "" {
		for _, param := range strings.Split(parts[1], ",") {
			kv := strings.SplitN(param, "=", 2)
			if len(kv) != 2 {
				return SourceSpec{}, fmt.Errorf("invalid parameter format: %s", param)
			}
			config[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
	}

	return SourceSpec{
		Type:   sourceType,
		Config: config,
	}, nil
}

// Deps carries the collaborators a source may need.
type Deps struct {
	BaseURL    string // Default API base when the spec has no url param
	Credential CredentialFunc
	Timeout    time.Duration
}

// CreateSource creates a TaskSource from a specification.
func CreateSource(spec SourceSpec, deps Deps) (TaskSource, error) {
	switch spec.Type {
	case SourceTypeDida:
		baseURL := spec.Config["url"]
		if baseURL == "" {
			baseURL = deps.BaseURL
		}
		return NewDidaSource(DidaConfig{
			BaseURL:    baseURL,
			Credential: deps.Credential,
			Timeout:    deps.Timeout,
		})

	case SourceTypeFile:
		path, ok := spec.Config["path"]
		if !ok || path == "" {
			return nil, fmt.Errorf("%w: file requires 'path' parameter", ErrInvalidConfig)
		}
		return NewFileSource(path)

	default:
		return nil, fmt.Errorf("unsupported source type: %s", spec.Type)
	}
}

// CreateSourceFromString parses spec and creates the source it names.
func CreateSourceFromString(spec string, deps Deps) (TaskSource, error) {
	parsed, err := ParseSourceSpec(spec)
	if err != nil {
		return nil, err
	}
	return CreateSource(parsed, deps)
}
