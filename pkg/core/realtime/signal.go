package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// exchangeSDP posts the local session description to the signaling endpoint
// and returns the remote description. The request is authenticated with the
// credential's bearer token; the endpoint is parameterized by model.
func exchangeSDP(ctx context.Context, client *http.Client, cred Credential, offerSDP string) (string, error) {
	endpoint, err := signalURL(cred)
	if err != nil {
		return "", NewSignalingError(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(offerSDP))
	if err != nil {
		return "", NewSignalingError(err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+cred.ClientSecret)
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", NewNegotiationTimeout("signaling exchange timed out")
		}
		return "", NewSignalingError(err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", NewSignalingError(err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", NewSignalingError(signalErrorMessage(resp.StatusCode, body))
	}

	return string(body), nil
}

func signalURL(cred Credential) (string, error) {
	u, err := url.Parse(cred.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	q := u.Query()
	q.Set("model", cred.Model)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// signalErrorMessage extracts a human-readable message from a non-success
// response. The endpoint usually returns {"error":{"message":...}}; anything
// else is surfaced as raw body text.
func signalErrorMessage(status int, body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fmt.Sprintf("signaling endpoint returned status %d", status)
}
