package gateway

import (
	"io"

	"github.com/goccy/go-json"
)

// 最多读取 4KiB 的错误响应体用于诊断。
const maxErrorBody = 4 << 10

type serverTimeResponse struct {
	ServerTime int64 `json:"serverTime"`
}

type listenKeyResponse struct {
	ListenKey string `json:"listenKey"`
}

type errorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// decodeJSON 解码成功响应；未知字段忽略。
func decodeJSON(body []byte, out any) error {
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

func readLimited(r io.Reader) []byte {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return b
}
