package escrow

import (
	"regexp"
	"testing"
)

func TestNewReferenceFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^KS1-\d{6}$`)

	for i := 0; i < 1000; i++ {
		ref := NewReference()
		if !pattern.MatchString(ref) {
			t.Fatalf("reference %q does not match KS1-\\d{6}", ref)
		}
	}
}
