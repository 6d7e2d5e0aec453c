package preload

import (
	"bytes"
	"encoding/json"
)

// RouteKind discriminates the two RouteSpec shapes.
type RouteKind int

const (
	// RouteShorthand is a bare path string.
	RouteShorthand RouteKind = iota

	// RouteExplicit is a record with a path and optional overrides.
	RouteExplicit
)

// String returns the kind name.
func (k RouteKind) String() string {
	if k == RouteExplicit {
		return "explicit"
	}
	return "shorthand"
}

// RouteSpec is one user-declared route to prefetch.
//
// Nil pointer fields mean "not supplied"; only explicit routes carry them.
type RouteSpec struct {
	Kind          RouteKind
	Path          string
	ComponentPath *string
	Reason        *string
	Priority      *int
}

// Shorthand returns a shorthand route for path.
func Shorthand(path string) RouteSpec {
	return RouteSpec{Kind: RouteShorthand, Path: path}
}

// Explicit returns an explicit route for path with no overrides.
func Explicit(path string) RouteSpec {
	return RouteSpec{Kind: RouteExplicit, Path: path}
}

// WithComponent returns a copy with the component path set.
func (r RouteSpec) WithComponent(componentPath string) RouteSpec {
	r = r.clone()
	r.Kind = RouteExplicit
	r.ComponentPath = &componentPath
	return r
}

// WithReason returns a copy with the reason set.
func (r RouteSpec) WithReason(reason string) RouteSpec {
	r = r.clone()
	r.Kind = RouteExplicit
	r.Reason = &reason
	return r
}

// WithPriority returns a copy with the priority set.
func (r RouteSpec) WithPriority(priority int) RouteSpec {
	r = r.clone()
	r.Kind = RouteExplicit
	r.Priority = &priority
	return r
}

// clone copies the pointer fields so the result shares no memory with r.
func (r RouteSpec) clone() RouteSpec {
	if r.ComponentPath != nil {
		v := *r.ComponentPath
		r.ComponentPath = &v
	}
	if r.Reason != nil {
		v := *r.Reason
		r.Reason = &v
	}
	if r.Priority != nil {
		v := *r.Priority
		r.Priority = &v
	}
	return r
}

// routeFields is the wire form of an explicit route.
type routeFields struct {
	Path          string  `json:"path" yaml:"path"`
	ComponentPath *string `json:"componentPath,omitempty" yaml:"componentPath,omitempty"`
	Component     *string `json:"component,omitempty" yaml:"component,omitempty"`
	Reason        *string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Priority      *int    `json:"priority,omitempty" yaml:"priority,omitempty"`
}

func (f routeFields) spec() RouteSpec {
	spec := RouteSpec{
		Kind:          RouteExplicit,
		Path:          f.Path,
		ComponentPath: f.ComponentPath,
		Reason:        f.Reason,
		Priority:      f.Priority,
	}
	// "component" is accepted as an alias; "componentPath" wins when both are set.
	if spec.ComponentPath == nil {
		spec.ComponentPath = f.Component
	}
	return spec
}

func (r RouteSpec) fields() routeFields {
	return routeFields{
		Path:          r.Path,
		ComponentPath: r.ComponentPath,
		Reason:        r.Reason,
		Priority:      r.Priority,
	}
}

// UnmarshalJSON decodes a JSON string as a shorthand route and a JSON object
// as an explicit route.
func (r *RouteSpec) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var path string
		if err := json.Unmarshal(trimmed, &path); err != nil {
			return err
		}
		*r = Shorthand(path)
		return nil
	}

	var f routeFields
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return err
	}
	*r = f.spec()
	return nil
}

// MarshalJSON encodes the route in the shape it was declared in.
func (r RouteSpec) MarshalJSON() ([]byte, error) {
	if r.Kind == RouteShorthand {
		return json.Marshal(r.Path)
	}
	return json.Marshal(r.fields())
}

// UnmarshalYAML implements yaml.Unmarshaler (gopkg.in/yaml.v2).
func (r *RouteSpec) UnmarshalYAML(unmarshal func(any) error) error {
	var path string
	if err := unmarshal(&path); err == nil {
		*r = Shorthand(path)
		return nil
	}

	var f routeFields
	if err := unmarshal(&f); err != nil {
		return err
	}
	*r = f.spec()
	return nil
}

// MarshalYAML implements yaml.Marshaler (gopkg.in/yaml.v2).
func (r RouteSpec) MarshalYAML() (any, error) {
	if r.Kind == RouteShorthand {
		return r.Path, nil
	}
	return r.fields(), nil
}
