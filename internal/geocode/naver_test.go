package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNaverProvider_Lookup(t *testing.T) {
	var gotQuery, gotID, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotID = r.Header.Get("x-ncp-apigw-api-key-id")
		gotKey = r.Header.Get("x-ncp-apigw-api-key")

		w.Header().Set("Content-Type", "application/json;charset=UTF-8")
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"meta": {"totalCount": 1, "page": 1, "count": 1},
			"addresses": [{
				"roadAddress": "서울특별시 강남구 테헤란로 152 강남파이낸스센터",
				"jibunAddress": "서울특별시 강남구 역삼동 737",
				"englishAddress": "152, Teheran-ro, Gangnam-gu, Seoul",
				"addressElements": [{"types": ["SIDO"], "longName": "서울특별시", "shortName": "서울특별시", "code": ""}],
				"x": "127.0363149",
				"y": "37.5000776",
				"distance": 0.0
			}],
			"errorMessage": ""
		}`))
	}))
	defer srv.Close()

	p := NewNaverProvider(NaverConfig{BaseURL: srv.URL, ClientID: "id", ClientSecret: "secret", Timeout: time.Second}, zap.NewNop())

	resp, err := p.Lookup(context.Background(), "서울특별시 강남구 테헤란로 152")
	require.NoError(t, err)

	assert.Equal(t, "서울특별시 강남구 테헤란로 152", gotQuery)
	assert.Equal(t, "id", gotID)
	assert.Equal(t, "secret", gotKey)

	assert.Equal(t, "OK", resp.Status)
	require.Len(t, resp.Addresses, 1)
	assert.Equal(t, "127.0363149", resp.Addresses[0].X)
	assert.Equal(t, "서울특별시", resp.Addresses[0].AddressElements[0].LongName)

	result := Classify(gotQuery, resp)
	assert.True(t, result.IsSuccess())
	assert.Equal(t, 100.0, result.Confidence)
}

func TestNaverProvider_StatusError(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"auth failure", 401, `{"error":{"errorCode":"200","message":"Authentication Failed","details":"Invalid authentication information."}}`, "Authentication Failed"},
		{"server error", 500, `{"errorMessage":"internal"}`, "internal"},
		{"rate limited", 429, `{}`, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			p := NewNaverProvider(NaverConfig{BaseURL: srv.URL, ClientID: "id", ClientSecret: "secret"}, zap.NewNop())
			_, err := p.Lookup(context.Background(), "q")

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tc.status, se.Code)
			assert.Equal(t, tc.message, se.Message)
		})
	}
}

func TestNaverProvider_NetworkErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewNaverProvider(NaverConfig{BaseURL: url, Timeout: 200 * time.Millisecond}, zap.NewNop())
	_, err := p.Lookup(context.Background(), "q")

	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}
