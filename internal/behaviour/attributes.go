package behaviour

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// AttributeType is the declared type of an editable component attribute.
type AttributeType string

const (
	AttributeBool   AttributeType = "bool"
	AttributeInt    AttributeType = "int"
	AttributeFloat  AttributeType = "float"
	AttributeString AttributeType = "string"
	AttributeVec3   AttributeType = "vec3"
	AttributeColor  AttributeType = "color"
)

var (
	ErrAttributeNotFound = errors.New("attribute not found")
	ErrTypeMismatch      = errors.New("attribute type mismatch")
)

// Attribute is a named, typed, editable value of a component. Components
// declare their attributes explicitly instead of being reflected over.
type Attribute struct {
	Name string
	Type AttributeType
	Get  func() any
	Set  func(any) error
}

// Attributed is implemented by components that expose attributes.
type Attributed interface {
	Attributes() []Attribute
}

func FloatAttr(name string, p *float32) Attribute {
	return Attribute{
		Name: name,
		Type: AttributeFloat,
		Get:  func() any { return *p },
		Set: func(v any) error {
			f, ok := toFloat(v)
			if !ok {
				return mismatch(name, AttributeFloat, v)
			}
			*p = f
			return nil
		},
	}
}

func IntAttr(name string, p *int) Attribute {
	return Attribute{
		Name: name,
		Type: AttributeInt,
		Get:  func() any { return *p },
		Set: func(v any) error {
			switch n := v.(type) {
			case int:
				*p = n
			case int32:
				*p = int(n)
			case int64:
				*p = int(n)
			default:
				return mismatch(name, AttributeInt, v)
			}
			return nil
		},
	}
}

func BoolAttr(name string, p *bool) Attribute {
	return Attribute{
		Name: name,
		Type: AttributeBool,
		Get:  func() any { return *p },
		Set: func(v any) error {
			b, ok := v.(bool)
			if !ok {
				return mismatch(name, AttributeBool, v)
			}
			*p = b
			return nil
		},
	}
}

func StringAttr(name string, p *string) Attribute {
	return Attribute{
		Name: name,
		Type: AttributeString,
		Get:  func() any { return *p },
		Set: func(v any) error {
			s, ok := v.(string)
			if !ok {
				return mismatch(name, AttributeString, v)
			}
			*p = s
			return nil
		},
	}
}

func Vec3Attr(name string, p *mgl32.Vec3) Attribute {
	return Attribute{
		Name: name,
		Type: AttributeVec3,
		Get:  func() any { return *p },
		Set: func(v any) error {
			vec, ok := toVec3(v)
			if !ok {
				return mismatch(name, AttributeVec3, v)
			}
			*p = vec
			return nil
		},
	}
}

func ColorAttr(name string, p *[3]float32) Attribute {
	return Attribute{
		Name: name,
		Type: AttributeColor,
		Get:  func() any { return *p },
		Set: func(v any) error {
			vec, ok := toVec3(v)
			if !ok {
				return mismatch(name, AttributeColor, v)
			}
			*p = [3]float32(vec)
			return nil
		},
	}
}

// DescribeAttributes returns the attributes of comp, or nil.
func DescribeAttributes(comp Component) []Attribute {
	if a, ok := comp.(Attributed); ok {
		return a.Attributes()
	}
	return nil
}

// AttributeValue reads a named attribute.
func AttributeValue(comp Component, name string) (any, error) {
	for _, a := range DescribeAttributes(comp) {
		if a.Name == name {
			return a.Get(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrAttributeNotFound, GetComponentTypeName(comp), name)
}

// SetAttribute writes a named attribute, converting numeric values where
// the declared type allows it.
func SetAttribute(comp Component, name string, value any) error {
	for _, a := range DescribeAttributes(comp) {
		if a.Name == name {
			return a.Set(value)
		}
	}
	return fmt.Errorf("%w: %s.%s", ErrAttributeNotFound, GetComponentTypeName(comp), name)
}

func mismatch(name string, want AttributeType, got any) error {
	return fmt.Errorf("%w: %s wants %s, got %T", ErrTypeMismatch, name, want, got)
}

func toFloat(v any) (float32, bool) {
	switch n := v.(type) {
	case float32:
		return n, true
	case float64:
		return float32(n), true
	case int:
		return float32(n), true
	case int64:
		return float32(n), true
	}
	return 0, false
}

func toVec3(v any) (mgl32.Vec3, bool) {
	switch t := v.(type) {
	case mgl32.Vec3:
		return t, true
	case [3]float32:
		return mgl32.Vec3(t), true
	case []float32:
		if len(t) == 3 {
			return mgl32.Vec3{t[0], t[1], t[2]}, true
		}
	case []float64:
		if len(t) == 3 {
			return mgl32.Vec3{float32(t[0]), float32(t[1]), float32(t[2])}, true
		}
	case []any:
		if len(t) != 3 {
			return mgl32.Vec3{}, false
		}
		var out mgl32.Vec3
		for i, e := range t {
			f, ok := toFloat(e)
			if !ok {
				return mgl32.Vec3{}, false
			}
			out[i] = f
		}
		return out, true
	}
	return mgl32.Vec3{}, false
}
