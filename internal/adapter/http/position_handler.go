package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"margincore/internal/usecase/margin"
)

type PositionHandler struct{ uc *margin.Usecase }

func NewPositionHandler(uc *margin.Usecase) *PositionHandler { return &PositionHandler{uc: uc} }

type openPositionReq struct {
	Trader             string      `json:"trader" validate:"required,hex40"`
	Nonce              uint64      `json:"nonce"`
	Offering           offeringReq `json:"offering"`
	Principal          string      `json:"principal"      validate:"required,uintstr"`
	DepositAmount      string      `json:"deposit_amount" validate:"required,uintstr"`
	DepositInHeldToken bool        `json:"deposit_in_held_token"`
	Order              string      `json:"order"`
}

func (h *PositionHandler) OpenPosition(c echo.Context) error {
	var req openPositionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.uc.Open(c.Request().Context(), margin.OpenInput{
		Trader:             req.Trader,
		Nonce:              req.Nonce,
		Offering:           req.Offering.toDomain(),
		Principal:          parseAmount(req.Principal),
		DepositAmount:      parseAmount(req.DepositAmount),
		DepositInHeldToken: req.DepositInHeldToken,
		Order:              []byte(req.Order),
	})
	if err != nil {
		return domainErr(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *PositionHandler) GetPosition(c echo.Context) error {
	positionID := c.Param("position_id")
	if !reHex64.MatchString(positionID) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid position_id"})
	}
	dto, err := h.uc.Get(c.Request().Context(), positionID)
	if err != nil {
		return domainErr(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

type increasePositionReq struct {
	Caller             string      `json:"caller" validate:"required,hex40"`
	Offering           offeringReq `json:"offering"`
	AddedPrincipal     string      `json:"added_principal" validate:"required,uintstr"`
	DepositAmount      string      `json:"deposit_amount"  validate:"required,uintstr"`
	DepositInHeldToken bool        `json:"deposit_in_held_token"`
	Order              string      `json:"order"`
}

func (h *PositionHandler) IncreasePosition(c echo.Context) error {
	positionID := c.Param("position_id")
	var req increasePositionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.uc.Increase(c.Request().Context(), margin.IncreaseInput{
		PositionID:         positionID,
		Caller:             req.Caller,
		Offering:           req.Offering.toDomain(),
		AddedPrincipal:     parseAmount(req.AddedPrincipal),
		DepositAmount:      parseAmount(req.DepositAmount),
		DepositInHeldToken: req.DepositInHeldToken,
		Order:              []byte(req.Order),
	})
	if err != nil {
		return domainErr(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

type depositReq struct {
	Caller string `json:"caller" validate:"required,hex40"`
	Amount string `json:"amount" validate:"required,uintstr"`
}

func (h *PositionHandler) DepositCollateral(c echo.Context) error {
	positionID := c.Param("position_id")
	var req depositReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.uc.Deposit(c.Request().Context(), margin.DepositInput{
		PositionID: positionID,
		Caller:     req.Caller,
		Amount:     parseAmount(req.Amount),
	})
	if err != nil {
		return domainErr(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

type closePositionReq struct {
	Caller            string `json:"caller"           validate:"required,hex40"`
	RequestedAmount   string `json:"requested_amount" validate:"required,uintstr"`
	PayoutRecipient   string `json:"payout_recipient" validate:"omitempty,hex40"`
	PayoutInHeldToken bool   `json:"payout_in_held_token"`
	Order             string `json:"order"`
}

func (h *PositionHandler) ClosePosition(c echo.Context) error {
	positionID := c.Param("position_id")
	var req closePositionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.uc.Close(c.Request().Context(), margin.CloseInput{
		PositionID:        positionID,
		Caller:            req.Caller,
		RequestedAmount:   parseAmount(req.RequestedAmount),
		PayoutRecipient:   req.PayoutRecipient,
		PayoutInHeldToken: req.PayoutInHeldToken,
		Order:             []byte(req.Order),
	})
	if err != nil {
		return domainErr(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

type closeDirectReq struct {
	Caller          string `json:"caller"           validate:"required,hex40"`
	RequestedAmount string `json:"requested_amount" validate:"required,uintstr"`
	PayoutRecipient string `json:"payout_recipient" validate:"omitempty,hex40"`
}

func (h *PositionHandler) ClosePositionDirect(c echo.Context) error {
	positionID := c.Param("position_id")
	var req closeDirectReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.uc.CloseDirect(c.Request().Context(), margin.CloseDirectInput{
		PositionID:      positionID,
		Caller:          req.Caller,
		RequestedAmount: parseAmount(req.RequestedAmount),
		PayoutRecipient: req.PayoutRecipient,
	})
	if err != nil {
		return domainErr(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

type marginCallReq struct {
	Caller          string `json:"caller" validate:"required,hex40"`
	RequiredDeposit string `json:"required_deposit" validate:"omitempty,uintstr"`
}

func (h *PositionHandler) MarginCall(c echo.Context) error {
	positionID := c.Param("position_id")
	var req marginCallReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.uc.MarginCall(c.Request().Context(), margin.MarginCallInput{
		PositionID:      positionID,
		Caller:          req.Caller,
		RequiredDeposit: parseAmount(req.RequiredDeposit),
	})
	if err != nil {
		return domainErr(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *PositionHandler) CancelMarginCall(c echo.Context) error {
	positionID := c.Param("position_id")
	var req marginCallReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.uc.CancelMarginCall(c.Request().Context(), margin.MarginCallInput{
		PositionID: positionID,
		Caller:     req.Caller,
	})
	if err != nil {
		return domainErr(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

type forceRecoverReq struct {
	Caller string `json:"caller" validate:"required,hex40"`
}

func (h *PositionHandler) ForceRecover(c echo.Context) error {
	positionID := c.Param("position_id")
	var req forceRecoverReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.uc.ForceRecover(c.Request().Context(), margin.ForceRecoverInput{
		PositionID: positionID,
		Caller:     req.Caller,
	})
	if err != nil {
		return domainErr(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
