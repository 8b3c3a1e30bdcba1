package handlers

import (
	"github.com/fatflowers/gachapon/internal/app/service/payment"
	"github.com/fatflowers/gachapon/internal/app/service/play"
	"github.com/fatflowers/gachapon/internal/app/service/relay"
	"github.com/fatflowers/gachapon/internal/app/service/statistics"
	"github.com/fatflowers/gachapon/internal/models"
	"github.com/fatflowers/gachapon/pkg/response"
	"github.com/fatflowers/gachapon/pkg/types"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

type RespMachines struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []types.Machine          `json:"data"`
}

type RespMachine struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    MachineDetail            `json:"data"`
}

type RespEvents struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []types.Event            `json:"data"`
}

type RespEvent struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    types.Event              `json:"data"`
}

type RespPreview struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    payment.PreviewResult    `json:"data"`
}

type RespIntent struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    payment.Intent           `json:"data"`
}

type RespStatus struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    payment.StatusView       `json:"data"`
}

type RespStatuses struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []payment.StatusView     `json:"data"`
}

type RespCredential struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.QRCredential      `json:"data"`
}

type RespCredits struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    CreditsResponse          `json:"data"`
}

type RespInventory struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.InventoryItem   `json:"data"`
}

type RespInventoryItem struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.InventoryItem     `json:"data"`
}

type RespDraw struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    play.DrawResult          `json:"data"`
}

type RespRedirect struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    relay.RedirectToPayment  `json:"data"`
}

// RespListPayments wraps ListPaymentsResponse in the standard envelope.
type RespListPayments struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ListPaymentsResponse     `json:"data"`
}

type RespPaymentEvents struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.PaymentEventLog `json:"data"`
}

type RespPaymentStatistic struct {
	Code    response.APIResponseCode            `json:"code"`
	Message string                              `json:"message"`
	Data    statistics.PaymentStatisticResponse `json:"data"`
}

type RespHealth struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    HealthResponse           `json:"data"`
}
