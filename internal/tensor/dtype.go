// Package tensor provides the core tensor types shared by the gradient kernels.
package tensor

// Float is a constraint for the element types the gradient kernels operate on.
type Float interface {
	~float32 | ~float64
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for kernel tensors.
const (
	Float32 DataType = iota
	Float64
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// AtLeastAsWide reports whether dt has at least the precision of other.
// Used to validate statistics dtypes against data dtypes for mixed precision.
func (dt DataType) AtLeastAsWide(other DataType) bool {
	return dt.Size() >= other.Size()
}

// inferDataType infers DataType from a generic element type.
func inferDataType[T Float](dummy T) DataType {
	switch any(dummy).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	default:
		panic("unsupported type")
	}
}
