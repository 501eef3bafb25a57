package geocode

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultNaverURL endpoint mặc định của Naver Cloud geocoding
const DefaultNaverURL = "https://maps.apigw.ntruss.com/map-geocode/v2/geocode"

// NaverConfig cấu hình NaverProvider
type NaverConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// NaverProvider gọi Naver geocoding API qua resty
type NaverProvider struct {
	client  *resty.Client
	baseURL string
	logger  *zap.Logger
}

type naverErrorBody struct {
	Error struct {
		ErrorCode string `json:"errorCode"`
		Message   string `json:"message"`
		Details   string `json:"details"`
	} `json:"error"`
	ErrorMessage string `json:"errorMessage"`
}

// NewNaverProvider tạo mới NaverProvider
func NewNaverProvider(cfg NaverConfig, logger *zap.Logger) *NaverProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultNaverURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("x-ncp-apigw-api-key-id", cfg.ClientID)
	client.SetHeader("x-ncp-apigw-api-key", cfg.ClientSecret)
	client.SetHeader("Accept", "application/json")

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		logger.Warn("Chưa cấu hình Naver API credentials, mọi request sẽ bị từ chối")
	}

	return &NaverProvider{
		client:  client,
		baseURL: cfg.BaseURL,
		logger:  logger,
	}
}

// Lookup tra cứu một địa chỉ. HTTP status ngoài 2xx trả về *StatusError.
func (p *NaverProvider) Lookup(ctx context.Context, query string) (*Response, error) {
	var result Response
	var apiErr naverErrorBody

	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("query", query).
		SetResult(&result).
		SetError(&apiErr).
		Get(p.baseURL)
	if err != nil {
		return nil, fmt.Errorf("lỗi gọi Naver geocoding: %w", err)
	}

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = apiErr.ErrorMessage
		}
		p.logger.Debug("Naver geocoding trả lỗi",
			zap.Int("status", resp.StatusCode()),
			zap.String("error_code", apiErr.Error.ErrorCode),
			zap.String("message", msg))
		return nil, &StatusError{Code: resp.StatusCode(), Message: msg}
	}

	return &result, nil
}
