package landnft

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"digiland/land-registry/land-registry-backend/internal/landnft/faults"
	"digiland/land-registry/land-registry-backend/internal/landnft/metadata"
)

// Response is the envelope every endpoint returns
type Response struct {
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Error      *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody tells the caller whether and how to retry
type ErrorBody struct {
	Kind          string `json:"kind,omitempty"`
	Retry         string `json:"retry"`
	Status        string `json:"ledgerStatus,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	Detail        string `json:"detail"`
}

type RegisterRequest struct {
	TokenName   string `json:"tokenName" binding:"required,min=3,max=50"`
	TokenSymbol string `json:"tokenSymbol" binding:"required,min=1,max=10"`
}

type MintRequest struct {
	TokenID string `json:"tokenId" binding:"required"`
	metadata.LandParcel
}

type PauseRequest struct {
	TokenID string `json:"tokenId" binding:"required"`
}

// UpdateMetadataRequest carries either a published reference or new attributes to publish
type UpdateMetadataRequest struct {
	TokenID       string               `json:"tokenId" binding:"required"`
	SerialNumbers []int64              `json:"serialNumbers" binding:"required,min=1"`
	Reference     string               `json:"reference"`
	Metadata      *metadata.LandParcel `json:"metadata"`
}

type TransferBody struct {
	FromAccountID string `json:"fromAccountId" binding:"required"`
	ToAccountID   string `json:"toAccountId" binding:"required"`
	SerialNumber  int64  `json:"serialNumber"`
}

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	nft := rg.Group("/land-nft")
	{
		nft.POST("/registerLandToken", h.RegisterLandToken)
		nft.POST("/mintLandToken", h.MintLandToken)
		nft.POST("/pauseLandToken", h.PauseLandToken)
		nft.POST("/updateLandTokenMetadata", h.UpdateLandTokenMetadata)
		nft.POST("/transferLandToken/:tokenId", h.TransferLandToken)
		nft.GET("/tokens/:tokenId", h.GetToken)
		nft.GET("/transactions/:transactionId", h.GetTransaction)
	}
}

func (h *Handler) RegisterLandToken(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	tokenID, err := h.service.RegisterLandToken(c.Request.Context(), req.TokenName, req.TokenSymbol)
	if err != nil {
		h.fail(c, "Error registering land token", err)
		return
	}
	c.JSON(http.StatusCreated, Response{
		StatusCode: http.StatusCreated,
		Message:    "Land token registered successfully",
		Data:       gin.H{"tokenId": tokenID},
	})
}

func (h *Handler) MintLandToken(c *gin.Context) {
	var req MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.service.MintLandToken(c.Request.Context(), req.TokenID, req.LandParcel)
	if err != nil {
		h.fail(c, "Error minting land token metadata", err)
		return
	}
	c.JSON(http.StatusOK, Response{
		StatusCode: http.StatusOK,
		Message:    "Land token metadata minted successfully",
		Data:       result,
	})
}

func (h *Handler) PauseLandToken(c *gin.Context) {
	var req PauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	if !h.service.PauseToken(c.Request.Context(), req.TokenID) {
		c.JSON(http.StatusBadRequest, Response{
			StatusCode: http.StatusBadRequest,
			Message:    "Failed to pause token",
			Data:       gin.H{"tokenId": req.TokenID},
		})
		return
	}
	c.JSON(http.StatusOK, Response{
		StatusCode: http.StatusOK,
		Message:    "Land token paused successfully",
		Data:       gin.H{"tokenId": req.TokenID},
	})
}

func (h *Handler) UpdateLandTokenMetadata(c *gin.Context) {
	var req UpdateMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if (req.Reference == "") == (req.Metadata == nil) {
		h.badRequest(c, errors.New("exactly one of reference or metadata is required"))
		return
	}

	ctx := c.Request.Context()
	var ref metadata.Reference
	if req.Metadata != nil {
		var err error
		ref, err = h.service.UpdateTokenMetadataFromParcel(ctx, req.TokenID, req.SerialNumbers, *req.Metadata)
		if err != nil {
			h.fail(c, "Error updating land token metadata", err)
			return
		}
	} else {
		var err error
		ref, err = metadata.ParseReference(req.Reference)
		if err != nil {
			h.badRequest(c, err)
			return
		}
		if err := h.service.UpdateTokenMetadata(ctx, req.TokenID, req.SerialNumbers, ref); err != nil {
			h.fail(c, "Error updating land token metadata", err)
			return
		}
	}

	c.JSON(http.StatusOK, Response{
		StatusCode: http.StatusOK,
		Message:    "Land token metadata updated successfully",
		Data: gin.H{
			"tokenId":       req.TokenID,
			"serialNumbers": req.SerialNumbers,
			"reference":     ref.String(),
		},
	})
}

func (h *Handler) TransferLandToken(c *gin.Context) {
	tokenID := c.Param("tokenId")
	var body TransferBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	h.logger.Info("Received transfer request",
		zap.String("token_id", tokenID),
		zap.String("from", body.FromAccountID),
		zap.String("to", body.ToAccountID),
		zap.Int64("serial", body.SerialNumber))

	err := h.service.TransferLand(c.Request.Context(), TransferRequest{
		TokenID:       tokenID,
		SerialNumber:  body.SerialNumber,
		FromAccountID: body.FromAccountID,
		ToAccountID:   body.ToAccountID,
	})
	if err != nil {
		h.fail(c, "Transfer failed", err)
		return
	}
	c.JSON(http.StatusOK, Response{
		StatusCode: http.StatusOK,
		Message:    "Land token transferred successfully",
		Data: gin.H{
			"tokenId":       tokenID,
			"fromAccountId": body.FromAccountID,
			"toAccountId":   body.ToAccountID,
		},
	})
}

func (h *Handler) GetToken(c *gin.Context) {
	token, err := h.service.TokenState(c.Request.Context(), c.Param("tokenId"))
	if err != nil {
		h.fail(c, "Error reading token state", err)
		return
	}
	c.JSON(http.StatusOK, Response{StatusCode: http.StatusOK, Message: "Token state", Data: token})
}

func (h *Handler) GetTransaction(c *gin.Context) {
	status, err := h.service.TransactionStatus(c.Request.Context(), c.Param("transactionId"))
	if err != nil {
		h.fail(c, "Error reading transaction status", err)
		return
	}
	c.JSON(http.StatusOK, Response{StatusCode: http.StatusOK, Message: "Transaction status", Data: status})
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, Response{
		StatusCode: http.StatusBadRequest,
		Message:    "Invalid request",
		Error: &ErrorBody{
			Kind:   string(faults.DescriptorInvalid),
			Retry:  string(faults.RetryNever),
			Detail: err.Error(),
		},
	})
}

func (h *Handler) fail(c *gin.Context, message string, err error) {
	status := StatusFor(err)
	body := &ErrorBody{
		Kind:   string(faults.KindOf(err)),
		Retry:  string(faults.RetryOf(err)),
		Detail: err.Error(),
	}
	if fe, ok := faults.As(err); ok {
		body.Status = fe.Status
		body.TransactionID = fe.TransactionID
	}

	log := h.logger.Warn
	if status >= http.StatusInternalServerError {
		log = h.logger.Error
	}
	log(message, zap.Int("status", status), zap.Error(err))

	if status == http.StatusAccepted {
		message = "Transaction submitted but its outcome is unknown; query the transaction before retrying"
	}
	c.JSON(status, Response{StatusCode: status, Message: message, Error: body})
}

// StatusFor maps a lifecycle error onto an HTTP status
func StatusFor(err error) int {
	switch faults.KindOf(err) {
	case faults.DescriptorInvalid:
		return http.StatusBadRequest
	case faults.InvalidState:
		return http.StatusConflict
	case faults.PublishFailed:
		return http.StatusBadGateway
	case faults.LedgerUnreachable:
		return http.StatusServiceUnavailable
	case faults.Canceled:
		return http.StatusRequestTimeout
	case faults.SubmissionUnconfirmed, faults.ConfirmationTimeout:
		return http.StatusAccepted
	case faults.RegistrationFailed, faults.MintFailed, faults.UpdateFailed, faults.TransferFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
