package tensor

import (
	"testing"
)

func assertEqualInt(t *testing.T, expected, actual int, msg string) {
	t.Helper()
	if expected != actual {
		t.Errorf("%s: expected %d, got %d", msg, expected, actual)
	}
}

func TestDataTypeSize(t *testing.T) {
	tests := []struct {
		dtype DataType
		size  int
	}{
		{Float32, 4},
		{Float64, 8},
	}

	for _, tt := range tests {
		if got := tt.dtype.Size(); got != tt.size {
			t.Errorf("%s.Size() = %d, want %d", tt.dtype, got, tt.size)
		}
	}
}

func TestDataTypeAtLeastAsWide(t *testing.T) {
	if !Float64.AtLeastAsWide(Float32) {
		t.Error("Float64 should be at least as wide as Float32")
	}
	if !Float32.AtLeastAsWide(Float32) {
		t.Error("Float32 should be at least as wide as itself")
	}
	if Float32.AtLeastAsWide(Float64) {
		t.Error("Float32 should not be at least as wide as Float64")
	}
}

func TestShapeSizeAroundAxis(t *testing.T) {
	s := Shape{2, 3, 4}

	assertEqualInt(t, 1, s.SizeToDim(0), "SizeToDim(0)")
	assertEqualInt(t, 2, s.SizeToDim(1), "SizeToDim(1)")
	assertEqualInt(t, 6, s.SizeToDim(2), "SizeToDim(2)")
	assertEqualInt(t, 24, s.SizeFromDim(0), "SizeFromDim(0)")
	assertEqualInt(t, 12, s.SizeFromDim(1), "SizeFromDim(1)")
	assertEqualInt(t, 4, s.SizeFromDim(2), "SizeFromDim(2)")

	// outer * feature always covers the whole tensor
	for axis := 0; axis < len(s); axis++ {
		assertEqualInt(t, s.NumElements(), s.SizeToDim(axis)*s.SizeFromDim(axis), "outer*feature")
	}
}

func TestResolveAxis(t *testing.T) {
	tests := []struct {
		axis, rank int
		want       int
		wantErr    bool
	}{
		{0, 3, 0, false},
		{2, 3, 2, false},
		{-1, 3, 2, false},
		{-3, 3, 0, false},
		{3, 3, 0, true},
		{-4, 3, 0, true},
	}

	for _, tt := range tests {
		got, err := ResolveAxis(tt.axis, tt.rank)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ResolveAxis(%d, %d): expected error", tt.axis, tt.rank)
			}
			continue
		}
		if err != nil {
			t.Errorf("ResolveAxis(%d, %d): unexpected error: %v", tt.axis, tt.rank, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveAxis(%d, %d) = %d, want %d", tt.axis, tt.rank, got, tt.want)
		}
	}
}

func TestShapeValidate(t *testing.T) {
	if err := (Shape{2, 3}).Validate(); err != nil {
		t.Errorf("valid shape rejected: %v", err)
	}
	if err := (Shape{2, 0}).Validate(); err == nil {
		t.Error("zero dimension accepted")
	}
	if err := (Shape{-1, 3}).Validate(); err == nil {
		t.Error("negative dimension accepted")
	}
}

func TestFromSlice(t *testing.T) {
	raw, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, CPU)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	if raw.DType() != Float32 {
		t.Errorf("dtype = %s, want float32", raw.DType())
	}
	if !raw.Shape().Equal(Shape{2, 3}) {
		t.Errorf("shape = %v, want [2 3]", raw.Shape())
	}

	data := raw.AsFloat32()
	for i, want := range []float32{1, 2, 3, 4, 5, 6} {
		if data[i] != want {
			t.Errorf("data[%d] = %v, want %v", i, data[i], want)
		}
	}
}

func TestFromSliceShapeMismatch(t *testing.T) {
	if _, err := FromSlice([]float32{1, 2, 3}, Shape{2, 3}, CPU); err == nil {
		t.Error("expected error for element count mismatch")
	}
}

func TestNewRawZeroInitialized(t *testing.T) {
	raw, err := NewRaw(Shape{3, 4}, Float64, CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}

	assertEqualInt(t, 12, raw.NumElements(), "NumElements")
	assertEqualInt(t, 96, raw.ByteSize(), "ByteSize")

	for i, v := range raw.AsFloat64() {
		if v != 0 {
			t.Errorf("element %d = %v, want 0", i, v)
		}
	}
}

func TestAsFloat32WrongDType(t *testing.T) {
	raw, err := NewRaw(Shape{2}, Float64, CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("AsFloat32 on float64 tensor should panic")
		}
	}()
	raw.AsFloat32()
}

func TestAsSlice(t *testing.T) {
	raw, err := FromSlice([]float64{1.5, 2.5}, Shape{2}, CPU)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	got := AsSlice[float64](raw)
	if got[0] != 1.5 || got[1] != 2.5 {
		t.Errorf("AsSlice = %v, want [1.5 2.5]", got)
	}
}
