package http

import (
	"bytes"
	"encoding/json"
	"math/big"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"margincore/internal/testutil/collabmock"
	"margincore/internal/testutil/memstore"
	"margincore/internal/usecase/margin"
)

// -------- helpers --------

var (
	tLender = strings.Repeat("a", 40)
	tTrader = strings.Repeat("b", 40)
	tOther  = strings.Repeat("d", 40)
	tOwed   = strings.Repeat("1", 40)
	tHeld   = strings.Repeat("2", 40)

	tStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

func newEchoWithValidator() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func mustJSON(v any) *bytes.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

// wireOffering is the JSON form of the fixture offering.
func wireOffering() map[string]any {
	return map[string]any{
		"lender":               tLender,
		"owed_token":           tOwed,
		"held_token":           tHeld,
		"max_amount":           "1000000",
		"min_amount":           "1000",
		"min_held_token":       "2000000",
		"interest_rate_bps":    1000,
		"interest_period_secs": 1,
		"call_time_limit_secs": 86_400,
		"max_duration_secs":    31_536_000,
		"expires_at":           tStart.AddDate(1, 0, 0),
		"salt":                 "s-1",
	}
}

// newMarginStack funds the fixture accounts and wires a 2-held-per-owed
// exchange, mirroring production wiring with in-memory collaborators.
func newMarginStack(t *testing.T) (*memstore.Store, *margin.Usecase) {
	t.Helper()
	store := memstore.New()
	store.SetBalance(tOwed, tLender, 10_000_000)
	store.SetBalance(tOwed, tTrader, 10_000_000)
	store.SetBalance(tHeld, tTrader, 10_000_000)
	uc := margin.NewUsecase(store, &collabmock.Exchange{Num: 2, Den: 1}, &collabmock.Authorizer{}, &collabmock.Consent{}).
		WithClock(memstore.FixedClock(tStart))
	return store, uc
}

func doJSON(e *echo.Echo, method, path string, body *bytes.Reader, fn echo.HandlerFunc, params ...string) *httptest.ResponseRecorder {
	var req *stdhttp.Request
	if body != nil {
		req = httptest.NewRequest(method, path, body)
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for i := 0; i+1 < len(params); i += 2 {
		c.SetParamNames(params[i])
		c.SetParamValues(params[i+1])
	}
	if err := fn(c); err != nil {
		panic(err)
	}
	return rec
}

func openFixturePosition(t *testing.T, uc *margin.Usecase) *margin.PositionDTO {
	t.Helper()
	h := NewPositionHandler(uc)
	e := newEchoWithValidator()
	rec := doJSON(e, stdhttp.MethodPost, "/positions", mustJSON(map[string]any{
		"trader":         tTrader,
		"nonce":          1,
		"offering":       wireOffering(),
		"principal":      "100000",
		"deposit_amount": "0",
	}), h.OpenPosition)
	if rec.Code != stdhttp.StatusCreated {
		t.Fatalf("open fixture position: status %d body %s", rec.Code, rec.Body.String())
	}
	var dto margin.PositionDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &dto); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	return &dto
}

// -------- tests --------

func TestOpenPosition_Created(t *testing.T) {
	_, uc := newMarginStack(t)

	dto := openFixturePosition(t, uc)
	if dto.Principal != "100000" || dto.CollateralBalance != "200000" {
		t.Fatalf("unexpected dto: %+v", dto)
	}
	if dto.Trader != tTrader || dto.Lender != tLender {
		t.Fatalf("unexpected parties: %+v", dto)
	}
}

func TestOpenPosition_ValidationDetails(t *testing.T) {
	_, uc := newMarginStack(t)
	h := NewPositionHandler(uc)
	e := newEchoWithValidator()

	rec := doJSON(e, stdhttp.MethodPost, "/positions", mustJSON(map[string]any{
		"trader":         "not-an-address",
		"offering":       wireOffering(),
		"principal":      "1.5",
		"deposit_amount": "0",
	}), h.OpenPosition)
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body %s", rec.Code, rec.Body.String())
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if resp.Error != "validation failed" || len(resp.Details) == 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !containsFieldMsg(resp.Details, "Trader", "must be 40-char lowercase hex") {
		t.Errorf("missing Trader detail: %+v", resp.Details)
	}
	if !containsFieldMsg(resp.Details, "Principal", "must be an unsigned decimal string") {
		t.Errorf("missing Principal detail: %+v", resp.Details)
	}
}

func TestOpenPosition_BadJSON(t *testing.T) {
	_, uc := newMarginStack(t)
	h := NewPositionHandler(uc)
	e := newEchoWithValidator()

	rec := doJSON(e, stdhttp.MethodPost, "/positions", bytes.NewReader([]byte("{nope")), h.OpenPosition)
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestOpenPosition_ExpiredOffering_Conflict(t *testing.T) {
	_, uc := newMarginStack(t)
	uc.WithClock(memstore.FixedClock(tStart.AddDate(2, 0, 0)))
	h := NewPositionHandler(uc)
	e := newEchoWithValidator()

	rec := doJSON(e, stdhttp.MethodPost, "/positions", mustJSON(map[string]any{
		"trader":         tTrader,
		"nonce":          1,
		"offering":       wireOffering(),
		"principal":      "100000",
		"deposit_amount": "0",
	}), h.OpenPosition)
	if rec.Code != stdhttp.StatusConflict {
		t.Fatalf("status = %d, want 409; body %s", rec.Code, rec.Body.String())
	}
}

func TestGetPosition(t *testing.T) {
	_, uc := newMarginStack(t)
	dto := openFixturePosition(t, uc)
	h := NewPositionHandler(uc)
	e := newEchoWithValidator()

	rec := doJSON(e, stdhttp.MethodGet, "/positions/"+dto.PositionID, nil, h.GetPosition, "position_id", dto.PositionID)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got margin.PositionDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if got.PositionID != dto.PositionID {
		t.Fatalf("unexpected dto: %+v", got)
	}

	// Malformed id short-circuits before the usecase.
	rec = doJSON(e, stdhttp.MethodGet, "/positions/xyz", nil, h.GetPosition, "position_id", "xyz")
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("malformed id: status = %d, want 400", rec.Code)
	}

	// Unknown but well-formed id is a 404.
	missing := strings.Repeat("e", 64)
	rec = doJSON(e, stdhttp.MethodGet, "/positions/"+missing, nil, h.GetPosition, "position_id", missing)
	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("unknown id: status = %d, want 404", rec.Code)
	}
}

func TestDepositCollateral(t *testing.T) {
	_, uc := newMarginStack(t)
	dto := openFixturePosition(t, uc)
	h := NewPositionHandler(uc)
	e := newEchoWithValidator()

	rec := doJSON(e, stdhttp.MethodPost, "/positions/"+dto.PositionID+"/deposit", mustJSON(map[string]any{
		"caller": tTrader,
		"amount": "10000",
	}), h.DepositCollateral, "position_id", dto.PositionID)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	var got margin.PositionDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if got.CollateralBalance != "210000" {
		t.Fatalf("collateral = %s, want 210000", got.CollateralBalance)
	}
}

func TestClosePosition_StrangerForbidden(t *testing.T) {
	_, uc := newMarginStack(t)
	dto := openFixturePosition(t, uc)
	h := NewPositionHandler(uc)
	e := newEchoWithValidator()

	rec := doJSON(e, stdhttp.MethodPost, "/positions/"+dto.PositionID+"/close", mustJSON(map[string]any{
		"caller":           tOther,
		"requested_amount": "50000",
		"payout_recipient": tOther,
	}), h.ClosePosition, "position_id", dto.PositionID)
	if rec.Code != stdhttp.StatusForbidden {
		t.Fatalf("status = %d, want 403; body %s", rec.Code, rec.Body.String())
	}
}

func TestMarginCall_Statuses(t *testing.T) {
	_, uc := newMarginStack(t)
	dto := openFixturePosition(t, uc)
	h := NewPositionHandler(uc)
	e := newEchoWithValidator()
	path := "/positions/" + dto.PositionID + "/margin-call"

	// Non-lender is forbidden.
	rec := doJSON(e, stdhttp.MethodPost, path, mustJSON(map[string]any{"caller": tOther}), h.MarginCall, "position_id", dto.PositionID)
	if rec.Code != stdhttp.StatusForbidden {
		t.Fatalf("stranger call: status = %d, want 403", rec.Code)
	}

	rec = doJSON(e, stdhttp.MethodPost, path, mustJSON(map[string]any{
		"caller":           tLender,
		"required_deposit": "5000",
	}), h.MarginCall, "position_id", dto.PositionID)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("call: status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	var got margin.PositionDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if got.CalledAt == nil || got.RequiredDeposit != "5000" {
		t.Fatalf("call not recorded: %+v", got)
	}

	// Calling twice conflicts.
	rec = doJSON(e, stdhttp.MethodPost, path, mustJSON(map[string]any{"caller": tLender}), h.MarginCall, "position_id", dto.PositionID)
	if rec.Code != stdhttp.StatusConflict {
		t.Fatalf("double call: status = %d, want 409", rec.Code)
	}
}

func TestForceRecover_NotReady_Conflict(t *testing.T) {
	_, uc := newMarginStack(t)
	dto := openFixturePosition(t, uc)
	h := NewPositionHandler(uc)
	e := newEchoWithValidator()

	rec := doJSON(e, stdhttp.MethodPost, "/positions/"+dto.PositionID+"/force-recover", mustJSON(map[string]any{
		"caller": tLender,
	}), h.ForceRecover, "position_id", dto.PositionID)
	if rec.Code != stdhttp.StatusConflict {
		t.Fatalf("status = %d, want 409; body %s", rec.Code, rec.Body.String())
	}
}

func TestClosePositionDirect_OK(t *testing.T) {
	store, uc := newMarginStack(t)
	dto := openFixturePosition(t, uc)
	h := NewPositionHandler(uc)
	e := newEchoWithValidator()

	rec := doJSON(e, stdhttp.MethodPost, "/positions/"+dto.PositionID+"/close-direct", mustJSON(map[string]any{
		"caller":           tTrader,
		"requested_amount": "100000",
		"payout_recipient": tTrader,
	}), h.ClosePositionDirect, "position_id", dto.PositionID)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	var got margin.CloseDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if got.RemainingPrincip != "0" || got.CollateralFreed != "200000" {
		t.Fatalf("unexpected close: %+v", got)
	}
	// Owed principal plus interest settled straight to the lender.
	if b := store.Balance(tOwed, tLender); b.Cmp(big.NewInt(10_000_000)) < 0 {
		t.Fatalf("lender owed balance = %s", b)
	}
}
