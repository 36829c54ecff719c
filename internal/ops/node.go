// Package ops provides kernel registration and dispatch for the training
// operators. Kernels are registered per (operator type, execution device,
// data dtype, statistics dtype) and constructed from a Node carrying the
// operator attributes.
package ops

// Node describes an operator invocation: its type and attributes.
// Tensor inputs and outputs are passed separately at compute time.
type Node struct {
	Name       string      // Node name (optional)
	OpType     string      // Operation type (e.g., "LayerNormalizationGrad")
	Attributes []Attribute // Operation attributes
}

// Attribute represents a node attribute.
type Attribute struct {
	Name   string    // Attribute name
	F      float32   // FLOAT value
	I      int64     // INT value
	S      string    // STRING value
	Floats []float32 // FLOATS array
	Ints   []int64   // INTS array
}

// GetAttrInt returns an integer attribute and whether it was present.
func GetAttrInt(node *Node, name string) (int64, bool) {
	for i := range node.Attributes {
		if node.Attributes[i].Name == name {
			return node.Attributes[i].I, true
		}
	}
	return 0, false
}

// GetAttrFloat returns a float attribute or the default value.
func GetAttrFloat(node *Node, name string, defaultVal float32) float32 {
	for i := range node.Attributes {
		if node.Attributes[i].Name == name {
			return node.Attributes[i].F
		}
	}
	return defaultVal
}
