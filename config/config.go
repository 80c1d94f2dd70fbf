// Package config provides the hierarchical settings lookup used while building subsystems and
// actions. Values are read once at construction time; nothing in a tick performs a lookup.
package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// Provider resolves dotted paths such as "drive.follower.translation.p" to raw values.
type Provider interface {
	Get(path string) (interface{}, error)
}

// AttributeMap is a convenience wrapper for pulling out typed information from a map.
type AttributeMap map[string]interface{}

// Has returns whether the top level key exists.
func (am AttributeMap) Has(name string) bool {
	_, has := am[name]
	return has
}

// Float64 returns the top level key as a float64, or def when missing or not numeric.
func (am AttributeMap) Float64(name string, def float64) float64 {
	x, has := am[name]
	if !has {
		return def
	}
	v, err := cast.ToFloat64E(x)
	if err != nil {
		return def
	}
	return v
}

// Get walks the map along a dotted path.
func (am AttributeMap) Get(path string) (interface{}, error) {
	if path == "" {
		return am, nil
	}
	var cur interface{} = am
	walked := make([]string, 0, strings.Count(path, ".")+1)
	for _, part := range strings.Split(path, ".") {
		walked = append(walked, part)
		m, ok := asMap(cur)
		if !ok {
			return nil, NewMalformedKeyError(strings.Join(walked[:len(walked)-1], "."), "section", cur)
		}
		next, has := m[part]
		if !has {
			return nil, NewMissingKeyError(path)
		}
		cur = next
	}
	return cur, nil
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case AttributeMap:
		return m, true
	case map[string]interface{}:
		return m, true
	default:
		return nil, false
	}
}

type subProvider struct {
	parent Provider
	prefix string
}

// Sub returns a provider rooted at prefix. Paths looked up through it are reported in errors
// relative to the root so a bad key can be found in the file.
func Sub(p Provider, prefix string) Provider {
	if sp, ok := p.(*subProvider); ok {
		return &subProvider{parent: sp.parent, prefix: join(sp.prefix, prefix)}
	}
	return &subProvider{parent: p, prefix: prefix}
}

func (sp *subProvider) Get(path string) (interface{}, error) {
	return sp.parent.Get(join(sp.prefix, path))
}

func join(prefix, path string) string {
	switch {
	case prefix == "":
		return path
	case path == "":
		return prefix
	default:
		return prefix + "." + path
	}
}

func fullPath(p Provider, path string) string {
	if sp, ok := p.(*subProvider); ok {
		return join(sp.prefix, path)
	}
	return path
}

// Float64 looks up a required number.
func Float64(p Provider, path string) (float64, error) {
	raw, err := p.Get(path)
	if err != nil {
		return 0, err
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, NewMalformedKeyError(fullPath(p, path), "number", raw)
	}
	return v, nil
}

// Float64Or looks up an optional number. A present but non-numeric value is still an error.
func Float64Or(p Provider, path string, def float64) (float64, error) {
	v, err := Float64(p, path)
	if IsMissingKey(err) {
		return def, nil
	}
	return v, err
}

// Int looks up a required integer.
func Int(p Provider, path string) (int, error) {
	raw, err := p.Get(path)
	if err != nil {
		return 0, err
	}
	v, err := cast.ToIntE(raw)
	if err != nil {
		return 0, NewMalformedKeyError(fullPath(p, path), "integer", raw)
	}
	return v, nil
}

// Bool looks up a required boolean.
func Bool(p Provider, path string) (bool, error) {
	raw, err := p.Get(path)
	if err != nil {
		return false, err
	}
	if _, ok := raw.(bool); !ok {
		return false, NewMalformedKeyError(fullPath(p, path), "boolean", raw)
	}
	return raw.(bool), nil
}

// BoolOr looks up an optional boolean.
func BoolOr(p Provider, path string, def bool) (bool, error) {
	v, err := Bool(p, path)
	if IsMissingKey(err) {
		return def, nil
	}
	return v, err
}

// String looks up a required string.
func String(p Provider, path string) (string, error) {
	raw, err := p.Get(path)
	if err != nil {
		return "", err
	}
	s, ok := raw.(string)
	if !ok {
		return "", NewMalformedKeyError(fullPath(p, path), "string", raw)
	}
	return s, nil
}

// Duration looks up a required duration. Strings are parsed with time.ParseDuration ("250ms");
// bare numbers are seconds.
func Duration(p Provider, path string) (time.Duration, error) {
	raw, err := p.Get(path)
	if err != nil {
		return 0, err
	}
	if s, ok := raw.(string); ok {
		d, err := cast.ToDurationE(s)
		if err != nil {
			return 0, NewMalformedKeyError(fullPath(p, path), "duration", raw)
		}
		return d, nil
	}
	secs, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, NewMalformedKeyError(fullPath(p, path), "duration", raw)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// DurationOr looks up an optional duration.
func DurationOr(p Provider, path string, def time.Duration) (time.Duration, error) {
	v, err := Duration(p, path)
	if IsMissingKey(err) {
		return def, nil
	}
	return v, err
}

// secondsToDurationHookFunc reads bare numbers as seconds for duration fields, the same as Duration.
func secondsToDurationHookFunc() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if to != durationType || from == durationType {
			return data, nil
		}
		switch from.Kind() {
		case reflect.Float32, reflect.Float64,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			secs, err := cast.ToFloat64E(data)
			if err != nil {
				return nil, err
			}
			return time.Duration(secs * float64(time.Second)), nil
		default:
			return data, nil
		}
	}
}

// Decode decodes the section at path into out using its json tags.
func Decode(p Provider, path string, out interface{}) error {
	raw, err := p.Get(path)
	if err != nil {
		return err
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			secondsToDurationHookFunc(),
		),
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return errors.Wrapf(err, "failed to decode config section %q", fullPath(p, path))
	}
	return nil
}
