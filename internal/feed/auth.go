package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Login exchanges API credentials for the session token the websocket
// handshake expects. XTS-style interactive login.
func Login(baseURL, appKey, secretKey string) (string, error) {
	payload := map[string]string{
		"appKey":    appKey,
		"secretKey": secretKey,
		"source":    "WebAPI",
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequest(http.MethodPost, baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 5 * time.Second}
	res, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("login request failed: %w", err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode/100 != 2 {
		return "", fmt.Errorf("login rejected: %d %s", res.StatusCode, string(raw))
	}

	var r struct {
		Result struct {
			Token string `json:"token"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return "", fmt.Errorf("login decode failed: %w", err)
	}
	if r.Result.Token == "" {
		return "", fmt.Errorf("login response carried no token: %s", string(raw))
	}
	return r.Result.Token, nil
}
