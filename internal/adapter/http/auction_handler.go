package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"margincore/internal/usecase/auction"
)

type AuctionHandler struct{ uc *auction.Usecase }

func NewAuctionHandler(uc *auction.Usecase) *AuctionHandler { return &AuctionHandler{uc: uc} }

type placeBidReq struct {
	Bidder      string `json:"bidder"       validate:"required,hex40"`
	OfferAmount string `json:"offer_amount" validate:"required,uintstr"`
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	positionID := c.Param("position_id")
	var req placeBidReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.uc.PlaceBid(c.Request().Context(), auction.PlaceBidInput{
		PositionID:  positionID,
		Bidder:      req.Bidder,
		OfferAmount: parseAmount(req.OfferAmount),
	})
	if err != nil {
		return domainErr(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *AuctionHandler) GetBid(c echo.Context) error {
	positionID := c.Param("position_id")
	if !reHex64.MatchString(positionID) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid position_id"})
	}
	dto, err := h.uc.GetBid(c.Request().Context(), positionID)
	if err != nil {
		return domainErr(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
