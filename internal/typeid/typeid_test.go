package typeid

import (
	"strings"
	"testing"
)

func TestNewAndValidate(t *testing.T) {
	id := NewJobID()
	if !strings.HasPrefix(id, PrefixJob+"_") {
		t.Fatalf("id %q missing prefix", id)
	}
	if err := Validate(id, PrefixJob); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := Validate(id, PrefixImage); err == nil {
		t.Fatalf("wrong prefix should fail")
	}
	if err := Validate("../../etc/passwd", PrefixImage); err == nil {
		t.Fatalf("garbage should fail")
	}
	if NewImageID() == NewImageID() {
		t.Fatalf("ids should be unique")
	}
}
