package mathx

import "testing"

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 3) != 3 || Clamp(-1, 0, 3) != 0 || Clamp(2, 3, 0) != 2 {
		t.Fatal("clamp")
	}
	if Min(uint8(2), 9) != 2 || Max(uint8(2), 9) != 9 {
		t.Fatal("min/max")
	}
}

func TestFields(t *testing.T) {
	const mask, shift = uint8(0x30), 4
	v := uint8(0xC5)
	if Field(v, mask, shift) != 0 {
		t.Fatalf("Field = %d", Field(v, mask, shift))
	}
	v = WithField(v, mask, shift, 0x2)
	if v != 0xE5 {
		t.Fatalf("WithField = %#x", v)
	}
	if Field(v, mask, shift) != 0x2 {
		t.Fatal("round trip")
	}
	// Oversized values are truncated to the mask.
	if WithField(uint8(0), mask, shift, 0xF) != 0x30 {
		t.Fatal("truncate")
	}
	if Update(uint8(0x0F), 0x80, 0x01) != 0x8E {
		t.Fatal("update")
	}
	if Update(uint8(0), 0x01, 0x01) != 0 {
		t.Fatal("clear wins")
	}
}
