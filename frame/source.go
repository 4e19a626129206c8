package frame

import "fmt"

// Kind discriminates how a frame's transform is obtained.
type Kind uint8

const (
	// KindFixed frames have a constant transform to their parent.
	KindFixed Kind = iota + 1
	// KindVariable frames derive their transform from scalar inputs.
	KindVariable
)

func (k Kind) String() string {
	switch k {
	case KindFixed:
		return "fixed"
	case KindVariable:
		return "variable"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Source is a producer-side frame as announced to the mirror.
//
// Methods are called from scheduler workers and must be safe for concurrent use.
type Source interface {
	Name() string
	// Path is the hierarchical path, unique across the producer tree.
	Path() string
	// Parent returns nil only for the producer's root frame.
	Parent() Source
	Kind() Kind
	// Transform is the transform to the parent. For variable frames it is ignored.
	Transform() Transform
}

// VariableSource is a Source of kind KindVariable.
type VariableSource interface {
	Source
	Inputs() Inputs
}

// Scalar is an external value driving a variable frame.
type Scalar interface {
	Value() float64
	// Subscribe registers fn to be called after every change and returns a function
	// that removes it. fn must not block.
	Subscribe(fn func()) (cancel func())
}

// RotationEncoding selects how Inputs.Rotation is interpreted.
type RotationEncoding uint8

const (
	// RotationYPR uses Rotation[0:3] as yaw, pitch and roll in radians.
	RotationYPR RotationEncoding = iota
	// RotationQuaternion uses Rotation[0:4] as x, y, z and the scalar part s.
	RotationQuaternion
)

// Inputs are the scalar sources of a variable frame. Nil slots read as zero, except a
// nil quaternion scalar part which reads as one.
type Inputs struct {
	Translation [3]Scalar
	Encoding    RotationEncoding
	Rotation    [4]Scalar
}

// Transform evaluates the inputs.
func (in Inputs) Transform() Transform {
	read := func(s Scalar, def float64) float64 {
		if s == nil {
			return def
		}
		return s.Value()
	}
	t := Transform{
		Translation: Vec3{
			X: read(in.Translation[0], 0),
			Y: read(in.Translation[1], 0),
			Z: read(in.Translation[2], 0),
		},
	}
	switch in.Encoding {
	case RotationQuaternion:
		t.Rotation = Quat{
			X: read(in.Rotation[0], 0),
			Y: read(in.Rotation[1], 0),
			Z: read(in.Rotation[2], 0),
			W: read(in.Rotation[3], 1),
		}.Normalize()
	default:
		t.Rotation = FromYPR(read(in.Rotation[0], 0), read(in.Rotation[1], 0), read(in.Rotation[2], 0))
	}
	return t
}

func (in Inputs) scalars() []Scalar {
	out := make([]Scalar, 0, 7)
	for _, s := range in.Translation {
		if s != nil {
			out = append(out, s)
		}
	}
	n := 3
	if in.Encoding == RotationQuaternion {
		n = 4
	}
	for _, s := range in.Rotation[:n] {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// underConstruction reports whether src or one of its ancestors is still being built.
func underConstruction(src Source) bool {
	for s := src; s != nil; s = s.Parent() {
		if uc, ok := s.(interface{ UnderConstruction() bool }); ok && uc.UnderConstruction() {
			return true
		}
	}
	return false
}
