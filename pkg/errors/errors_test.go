package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected", detailsOK: true},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInsufficientStock, status: http.StatusConflict, publicMsg: "insufficient stock", detailsOK: true},
		{code: CodeInsufficientFunds, status: http.StatusUnprocessableEntity, publicMsg: "payment amount does not match order total", detailsOK: true},
		{code: CodeTransaction, status: http.StatusInternalServerError, publicMsg: "transaction failed", retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestTxFailureKeepsTypedErrors(t *testing.T) {
	typed := InvalidTransition("delivered", "cancelled")
	if got := TxFailure(fmt.Errorf("outer: %w", typed), "tx"); CodeOf(got) != CodeStateConflict {
		t.Fatalf("expected state conflict, got %s", CodeOf(got))
	}

	raw := stdErrors.New("disk full")
	got := TxFailure(raw, "tx")
	if CodeOf(got) != CodeTransaction {
		t.Fatalf("expected transaction failure, got %s", CodeOf(got))
	}
	if !stdErrors.Is(got, raw) {
		t.Fatalf("transaction failure lost its cause")
	}
	if TxFailure(nil, "tx") != nil {
		t.Fatalf("nil error must stay nil")
	}
}

func TestDomainConstructorsCarryCodes(t *testing.T) {
	cases := map[Code]*Error{
		CodeValidation:        EmptyCart(),
		CodeStateConflict:     InvalidTransition("pending", "delivered"),
		CodeInsufficientStock: InsufficientStock("p-1", 3),
		CodeInsufficientFunds: InsufficientFunds("5000.00", "4500.00"),
		CodeConflict:          AlreadyProcessed("vendor payment"),
	}
	for code, err := range cases {
		if !IsCode(err, code) {
			t.Fatalf("expected %s, got %s", code, err.Code())
		}
	}
	details, ok := InsufficientFunds("5000", "4500").Details().(map[string]any)
	if !ok || details["received"] != "4500" {
		t.Fatalf("unexpected details %#v", details)
	}
}

func TestDumpFlagsDuplicates(t *testing.T) {
	d := Dump(Wrap(CodeConflict, gorm.ErrDuplicatedKey, "insert claim"))
	if !d.Duplicate || d.Code != CodeConflict {
		t.Fatalf("unexpected dump %#v", d)
	}

	pg := &pgconn.PgError{Code: "23505", ConstraintName: "ux_claims_active"}
	d = Dump(fmt.Errorf("insert: %w", pg))
	if !d.Duplicate || d.PGConstraint != "ux_claims_active" {
		t.Fatalf("unexpected pg dump %#v", d)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %d", len(d.Chain))
	}
}
