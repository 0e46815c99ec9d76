package apierr

import (
	"errors"
	"net/http"
	"testing"
)

func TestOfAppliesConventionalStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindConflictOnCancel, http.StatusConflict},
		{KindTransientStore, http.StatusServiceUnavailable},
		{KindReasonerError, http.StatusServiceUnavailable},
		{KindInterruptBestEffort, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		err := Of(tc.kind, errors.New("boom"))
		if err.Status != tc.want {
			t.Fatalf("Of(%s).Status = %d, want %d", tc.kind, err.Status, tc.want)
		}
		if err.Code != string(tc.kind) {
			t.Fatalf("Of(%s).Code = %q, want %q", tc.kind, err.Code, tc.kind)
		}
	}
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("underlying")
	err := New(http.StatusBadRequest, "invalid_request_body", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}
	if err.Error() != cause.Error() {
		t.Fatalf("Error() = %q, want %q", err.Error(), cause.Error())
	}
}

func TestErrorWithoutCauseFallsBackToCode(t *testing.T) {
	err := New(0, "some_code", nil)
	if err.Error() != "some_code" {
		t.Fatalf("Error() = %q, want %q", err.Error(), "some_code")
	}
}
