package validate_test

import (
	"testing"

	"github.com/ardanlabs/peerledger/foundation/validate"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestCheck(t *testing.T) {
	type model struct {
		Name   string `json:"name" validate:"required"`
		Amount uint64 `json:"amount" validate:"gt=0"`
	}

	t.Log("Given the need to validate request models.")
	{
		if err := validate.Check(model{Name: "bill", Amount: 1}); err != nil {
			t.Fatalf("\t%s\tShould accept a valid model: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept a valid model.", success)

		err := validate.Check(model{})
		fields := validate.GetFieldErrors(err)
		if len(fields) != 2 {
			t.Fatalf("\t%s\tShould report both fields: %v", failed, err)
		}
		t.Logf("\t%s\tShould report both fields.", success)

		if _, exists := fields["name"]; !exists {
			t.Fatalf("\t%s\tShould use the json field names: %v", failed, fields)
		}
		t.Logf("\t%s\tShould use the json field names.", success)
	}
}
