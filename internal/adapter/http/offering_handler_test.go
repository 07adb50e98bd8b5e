package http

import (
	"encoding/json"
	stdhttp "net/http"
	"testing"

	"margincore/internal/testutil/memstore"
	"margincore/internal/usecase/offering"
)

func newOfferingStack(t *testing.T) (*memstore.Store, *OfferingHandler) {
	t.Helper()
	store := memstore.New()
	uc := offering.NewUsecase(store).WithClock(memstore.FixedClock(tStart))
	return store, NewOfferingHandler(uc)
}

func TestCancelOffering_OK(t *testing.T) {
	_, h := newOfferingStack(t)
	e := newEchoWithValidator()

	rec := doJSON(e, stdhttp.MethodPost, "/offerings/cancel", mustJSON(map[string]any{
		"offering": wireOffering(),
		"caller":   tLender,
		"amount":   "400000",
	}), h.CancelOffering)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if got["cancelled"] != "400000" {
		t.Fatalf("cancelled = %q", got["cancelled"])
	}
}

func TestCancelOffering_StrangerForbidden(t *testing.T) {
	_, h := newOfferingStack(t)
	e := newEchoWithValidator()

	rec := doJSON(e, stdhttp.MethodPost, "/offerings/cancel", mustJSON(map[string]any{
		"offering": wireOffering(),
		"caller":   tOther,
		"amount":   "1",
	}), h.CancelOffering)
	if rec.Code != stdhttp.StatusForbidden {
		t.Fatalf("status = %d, want 403; body %s", rec.Code, rec.Body.String())
	}
}

func TestCancelOffering_ValidationDetails(t *testing.T) {
	_, h := newOfferingStack(t)
	e := newEchoWithValidator()

	rec := doJSON(e, stdhttp.MethodPost, "/offerings/cancel", mustJSON(map[string]any{
		"offering": wireOffering(),
		"caller":   tLender,
		"amount":   "-1",
	}), h.CancelOffering)
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body %s", rec.Code, rec.Body.String())
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if !containsFieldMsg(resp.Details, "Amount", "must be an unsigned decimal string") {
		t.Errorf("missing Amount detail: %+v", resp.Details)
	}
}

func TestApproveOffering_OK(t *testing.T) {
	_, h := newOfferingStack(t)
	e := newEchoWithValidator()

	rec := doJSON(e, stdhttp.MethodPost, "/offerings/approve", mustJSON(map[string]any{
		"offering": wireOffering(),
		"caller":   tLender,
	}), h.ApproveOffering)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	// Availability now reports the approval.
	rec = doJSON(e, stdhttp.MethodPost, "/offerings/available", mustJSON(map[string]any{
		"offering": wireOffering(),
	}), h.Available)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("available: status = %d; body %s", rec.Code, rec.Body.String())
	}
	var fs offering.FillStateDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &fs); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if !fs.Approved || fs.Available != "1000000" || fs.Filled != "0" {
		t.Fatalf("unexpected fill state: %+v", fs)
	}
}

func TestApproveOffering_ExpiredConflict(t *testing.T) {
	store, _ := newOfferingStack(t)
	uc := offering.NewUsecase(store).WithClock(memstore.FixedClock(tStart.AddDate(2, 0, 0)))
	h := NewOfferingHandler(uc)
	e := newEchoWithValidator()

	rec := doJSON(e, stdhttp.MethodPost, "/offerings/approve", mustJSON(map[string]any{
		"offering": wireOffering(),
		"caller":   tLender,
	}), h.ApproveOffering)
	if rec.Code != stdhttp.StatusConflict {
		t.Fatalf("status = %d, want 409; body %s", rec.Code, rec.Body.String())
	}
}
