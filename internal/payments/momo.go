package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/storelane/api/internal/platform/config"
)

const momoProviderName = "momo"

// MoMoProvider verifies MoMo IPN callbacks using the partner's HMAC secret.
type MoMoProvider struct {
	partnerCode string
	accessKey   string
	secretKey   string
}

// NewMoMoProvider constructs a MoMoProvider from partner credentials.
func NewMoMoProvider(cfg config.MoMoConfig) (*MoMoProvider, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("payments: momo secret key is required")
	}
	return &MoMoProvider{
		partnerCode: strings.TrimSpace(cfg.PartnerCode),
		accessKey:   strings.TrimSpace(cfg.AccessKey),
		secretKey:   cfg.SecretKey,
	}, nil
}

// Name implements Provider.
func (p *MoMoProvider) Name() string { return momoProviderName }

type momoIPN struct {
	PartnerCode  string      `json:"partnerCode"`
	OrderID      string      `json:"orderId"`
	RequestID    string      `json:"requestId"`
	Amount       json.Number `json:"amount"`
	OrderInfo    string      `json:"orderInfo"`
	OrderType    string      `json:"orderType"`
	TransID      json.Number `json:"transId"`
	ResultCode   json.Number `json:"resultCode"`
	Message      string      `json:"message"`
	PayType      string      `json:"payType"`
	ResponseTime json.Number `json:"responseTime"`
	ExtraData    string      `json:"extraData"`
	Signature    string      `json:"signature"`
}

// VerifyNotification validates the IPN signature and normalises the payload.
// The signature covers the access key plus the callback fields concatenated in
// MoMo's documented order; any tampering invalidates the HMAC.
func (p *MoMoProvider) VerifyNotification(ctx context.Context, req IPNRequest) (Notification, error) {
	var ipn momoIPN
	decoder := json.NewDecoder(strings.NewReader(string(req.Body)))
	decoder.UseNumber()
	if err := decoder.Decode(&ipn); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	if ipn.OrderID == "" || ipn.Signature == "" {
		return Notification{}, ErrMalformedNotification
	}
	if p.partnerCode != "" && ipn.PartnerCode != p.partnerCode {
		return Notification{}, ErrInvalidSignature
	}

	expected := p.sign(ipn)
	if !hmac.Equal([]byte(expected), []byte(ipn.Signature)) {
		return Notification{}, ErrInvalidSignature
	}

	resultCode, _ := ipn.ResultCode.Int64()
	amount, _ := ipn.Amount.Int64()

	raw := map[string]any{
		"requestId":    ipn.RequestID,
		"payType":      ipn.PayType,
		"orderInfo":    ipn.OrderInfo,
		"responseTime": ipn.ResponseTime.String(),
		"resultCode":   strconv.FormatInt(resultCode, 10),
	}
	if extra := decodeExtraData(ipn.ExtraData); extra != nil {
		raw["extraData"] = extra
	}

	return Notification{
		Provider:      momoProviderName,
		OrderCode:     ipn.OrderID,
		TransactionID: ipn.TransID.String(),
		Amount:        amount,
		Success:       resultCode == 0,
		Message:       ipn.Message,
		Raw:           raw,
	}, nil
}

func (p *MoMoProvider) sign(ipn momoIPN) string {
	payload := strings.Join([]string{
		"accessKey=" + p.accessKey,
		"amount=" + ipn.Amount.String(),
		"extraData=" + ipn.ExtraData,
		"message=" + ipn.Message,
		"orderId=" + ipn.OrderID,
		"orderInfo=" + ipn.OrderInfo,
		"orderType=" + ipn.OrderType,
		"partnerCode=" + ipn.PartnerCode,
		"payType=" + ipn.PayType,
		"requestId=" + ipn.RequestID,
		"responseTime=" + ipn.ResponseTime.String(),
		"resultCode=" + ipn.ResultCode.String(),
		"transId=" + ipn.TransID.String(),
	}, "&")

	mac := hmac.New(sha256.New, []byte(p.secretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// decodeExtraData unpacks the base64-encoded JSON blob MoMo echoes back.
// Undecodable values are discarded rather than failing the notification.
func decodeExtraData(extra string) map[string]any {
	trimmed := strings.TrimSpace(extra)
	if trimmed == "" {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
