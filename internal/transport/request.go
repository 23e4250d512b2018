package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
)

// ReadBody reads a response body up to the size limit and closes it. Any
// non-2xx status is returned as an *errors.APIError carrying the body text.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer func() {
		drain(resp.Body)
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxResponseSize))
	if err != nil {
		return nil, errors.WrapIO("read", "response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		endpoint := ""
		if resp.Request != nil && resp.Request.URL != nil {
			endpoint = resp.Request.URL.Path
		}
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return body, errors.NewAPIError(endpoint, resp.StatusCode, msg)
	}
	return body, nil
}

// DecodeResponse decodes a JSON response into target.
func DecodeResponse(resp *http.Response, target any) error {
	body, err := ReadBody(resp)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		source := "response"
		if resp.Request != nil && resp.Request.URL != nil {
			source = resp.Request.URL.Path
		}
		return errors.WrapParse("json", source, err)
	}
	return nil
}
