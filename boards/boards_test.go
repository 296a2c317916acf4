package boards

import "testing"

func TestLiteralsValidate(t *testing.T) {
	for _, b := range []Board{PicoPower, Sim(), Selected} {
		if err := b.Validate(); err != nil {
			t.Fatalf("%s: %v", b.Name, err)
		}
	}
}
