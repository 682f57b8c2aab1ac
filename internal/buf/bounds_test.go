package buf

import (
	"math"
	"testing"
)

func TestAddOverflowSafe(t *testing.T) {
	if sum, ok := AddOverflowSafe(10, 5); !ok || sum != 15 {
		t.Fatalf("AddOverflowSafe(10,5)=%d,%v want 15,true", sum, ok)
	}
	if _, ok := AddOverflowSafe(math.MaxInt, 1); ok {
		t.Fatalf("expected overflow when adding to MaxInt")
	}
	if _, ok := AddOverflowSafe(math.MinInt, -1); ok {
		t.Fatalf("expected underflow when subtracting from MinInt")
	}
}

func TestMulNonNeg(t *testing.T) {
	if got, ok := MulNonNeg(8, 4); !ok || got != 32 {
		t.Fatalf("MulNonNeg(8,4)=%d,%v want 32,true", got, ok)
	}
	if got, ok := MulNonNeg(0, math.MaxInt); !ok || got != 0 {
		t.Fatalf("MulNonNeg(0,MaxInt)=%d,%v want 0,true", got, ok)
	}
	if _, ok := MulNonNeg(math.MaxInt, 2); ok {
		t.Fatalf("expected overflow for MaxInt*2")
	}
	if _, ok := MulNonNeg(-1, 4); ok {
		t.Fatalf("negative operand should be rejected")
	}
}

func TestCheckListBounds(t *testing.T) {
	if end, err := CheckListBounds(100, 10, 8, 8); err != nil || end != 74 {
		t.Fatalf("CheckListBounds = %d, %v, want 74, nil", end, err)
	}
	if _, err := CheckListBounds(100, 10, 12, 8); err == nil {
		t.Fatalf("expected bounds error when list extends past buffer")
	}
	if _, err := CheckListBounds(100, -1, 1, 8); err == nil {
		t.Fatalf("expected error for negative offset")
	}
	if _, err := CheckListBounds(100, 0, math.MaxInt, 8); err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestSliceAndHas(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4}
	if got, ok := Slice(data, 1, 3); !ok || len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("Slice returned unexpected result: %v, %v", got, ok)
	}
	if _, ok := Slice(data, 4, 2); ok {
		t.Fatalf("Slice should fail when extending beyond len")
	}
	if Has(data, 2, 4) {
		t.Fatalf("Has should be false for out-of-bounds range")
	}
	if !Has(data, 2, 1) {
		t.Fatalf("Has should be true for valid range")
	}
	if _, ok := Slice(data, -1, 1); ok {
		t.Fatalf("Slice should reject negative offset")
	}
	if _, ok := Slice(data, 1, -1); ok {
		t.Fatalf("Slice should reject negative length")
	}
}
