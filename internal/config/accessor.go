package config

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// A path addresses a config leaf by JSON field names joined with dots.
// Slice elements are addressed by index: "provider.fallbacks.0.model".
// Fields of the embedded Endpoint sit directly under "provider".

// GetByPath returns the value at path with its Go type intact.
func GetByPath(cfg *Config, path string) (any, error) {
	v, _, err := resolve(reflect.ValueOf(cfg).Elem(), path)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// SetByPath parses value according to the kind of the field at path and
// stores it in cfg. Structs and slices cannot be set as a whole.
func SetByPath(cfg *Config, path, value string) error {
	v, _, err := resolve(reflect.ValueOf(cfg).Elem(), path)
	if err != nil {
		return err
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s expects true or false, got %q", path, value)
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("%s expects an integer, got %q", path, value)
		}
		v.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s expects a number, got %q", path, value)
		}
		v.SetFloat(f)
	default:
		return fmt.Errorf("%s is a %s and cannot be set from a single value", path, v.Kind())
	}
	return nil
}

// IsSecret reports whether path names a credential field.
func IsSecret(path string) bool {
	if rest, ok := strings.CutPrefix(path, "provider.fallbacks."); ok {
		// Fallback entries are absent from the defaults; check the Endpoint shape.
		_, field, _ := strings.Cut(rest, ".")
		_, secret, err := resolve(reflect.ValueOf(&Endpoint{}).Elem(), field)
		return err == nil && secret
	}
	_, secret, err := resolve(reflect.ValueOf(Defaults()).Elem(), path)
	return err == nil && secret
}

// ListPaths returns every leaf path with its current value.
func ListPaths(cfg *Config) map[string]any {
	out := make(map[string]any)
	walk("", reflect.ValueOf(cfg).Elem(), func(path string, v reflect.Value, _ bool) {
		out[path] = v.Interface()
	})
	return out
}

// Sanitize returns a copy of cfg with every secret-tagged field masked.
func Sanitize(cfg *Config) *Config {
	c := *cfg
	c.Provider.Fallbacks = slices.Clone(cfg.Provider.Fallbacks)
	walk("", reflect.ValueOf(&c).Elem(), func(_ string, v reflect.Value, secret bool) {
		if secret && v.Kind() == reflect.String && v.String() != "" {
			v.SetString(maskString(v.String()))
		}
	})
	return &c
}

// maskString keeps the first and last four characters.
func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

func resolve(v reflect.Value, path string) (reflect.Value, bool, error) {
	if path == "" {
		return reflect.Value{}, false, fmt.Errorf("empty config path")
	}
	secret := false
	for _, key := range strings.Split(path, ".") {
		switch v.Kind() {
		case reflect.Struct:
			f, sf, ok := fieldByName(v, key)
			if !ok {
				return reflect.Value{}, false, fmt.Errorf("key not found: %s", path)
			}
			v, secret = f, sf.Tag.Get("secret") == "true"
		case reflect.Slice:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= v.Len() {
				return reflect.Value{}, false, fmt.Errorf("index %q out of range in %s", key, path)
			}
			v = v.Index(i)
		default:
			return reflect.Value{}, false, fmt.Errorf("key not found: %s", path)
		}
	}
	return v, secret, nil
}

// fieldByName finds the field whose JSON name is name, looking through
// untagged embedded structs.
func fieldByName(v reflect.Value, name string) (reflect.Value, reflect.StructField, bool) {
	t := v.Type()
	for i := range t.NumField() {
		sf := t.Field(i)
		if inlined(sf) {
			if f, inner, ok := fieldByName(v.Field(i), name); ok {
				return f, inner, true
			}
			continue
		}
		if jsonName(sf) == name {
			return v.Field(i), sf, true
		}
	}
	return reflect.Value{}, reflect.StructField{}, false
}

func walk(prefix string, v reflect.Value, visit func(path string, v reflect.Value, secret bool)) {
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := range t.NumField() {
			sf := t.Field(i)
			if inlined(sf) {
				walk(prefix, v.Field(i), visit)
				continue
			}
			f := v.Field(i)
			if f.Kind() == reflect.Struct || f.Kind() == reflect.Slice {
				walk(join(prefix, jsonName(sf)), f, visit)
				continue
			}
			visit(join(prefix, jsonName(sf)), f, sf.Tag.Get("secret") == "true")
		}
	case reflect.Slice:
		for i := range v.Len() {
			walk(join(prefix, strconv.Itoa(i)), v.Index(i), visit)
		}
	}
}

func inlined(sf reflect.StructField) bool {
	return sf.Anonymous && sf.Tag.Get("json") == ""
}

func jsonName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" {
		return sf.Name
	}
	return name
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
