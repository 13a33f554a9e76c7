// Package client talks to a pollrd node over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/tokenized/pollr/pkg/pollr"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when the node responds with 404.
	ErrNotFound = errors.New("Not found")
)

// HTTPError is a non success response from the node.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if len(e.Message) == 0 {
		return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

// AdmittanceInstructions are the outputs a topic admitted and the spent coins it retained.
type AdmittanceInstructions struct {
	OutputsToAdmit []uint32 `json:"outputsToAdmit"`
	CoinsToRetain  []uint32 `json:"coinsToRetain"`
}

// Tally is the vote count of a poll.
type Tally struct {
	PollTxid  string              `json:"pollTxid"`
	Status    pollr.PollStatus    `json:"status"`
	Results   []pollr.OptionCount `json:"results"`
	Discarded int                 `json:"discarded"`
}

// Closure is the close token of a poll and the outputs its close transaction spends.
type Closure struct {
	Token  *pollr.CloseToken `json:"token"`
	Spends []pollr.Outpoint  `json:"spends"`
}

// HTTPClient is a client for a pollrd node.
type HTTPClient struct {
	URL string

	// AdminKey is sent as a bearer token on operator requests such as Evict.
	AdminKey string

	client *http.Client
}

// NewHTTPClient returns a client for the node at url.
func NewHTTPClient(url string) *HTTPClient {
	var transport = &http.Transport{
		Dial: (&net.Dialer{
			Timeout: 5 * time.Second,
		}).Dial,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	return &HTTPClient{
		URL: url,
		client: &http.Client{
			Timeout:   time.Second * 10,
			Transport: transport,
		},
	}
}

// Submit sends a raw transaction to the topics and returns the admittance instructions per topic.
func (c *HTTPClient) Submit(ctx context.Context, rawTx []byte,
	topics []string) (map[string]AdmittanceInstructions, error) {

	request := struct {
		RawTx  string   `json:"rawTx"`
		Topics []string `json:"topics"`
	}{
		RawTx:  hex.EncodeToString(rawTx),
		Topics: topics,
	}

	var response map[string]AdmittanceInstructions
	if err := c.post(ctx, "/submit", request, &response); err != nil {
		return nil, errors.Wrap(err, "http post")
	}

	return response, nil
}

// Lookup asks the node a lookup question.
func (c *HTTPClient) Lookup(ctx context.Context,
	question *pollr.Question) ([]pollr.Outpoint, error) {

	var response []pollr.Outpoint
	if err := c.post(ctx, "/lookup", question, &response); err != nil {
		return nil, errors.Wrap(err, "http post")
	}

	return response, nil
}

// Tally returns the vote count of the poll.
func (c *HTTPClient) Tally(ctx context.Context, pollTxid string) (*Tally, error) {
	response := &Tally{}
	if err := c.get(ctx, "/polls/"+pollTxid+"/tally", response); err != nil {
		return nil, errors.Wrap(err, "http get")
	}

	return response, nil
}

// Close returns the close token of an open poll and the outputs its close transaction spends.
func (c *HTTPClient) Close(ctx context.Context, pollTxid string) (*Closure, error) {
	response := &Closure{}
	if err := c.get(ctx, "/polls/"+pollTxid+"/close", response); err != nil {
		return nil, errors.Wrap(err, "http get")
	}

	return response, nil
}

// Evict removes the outputs of the transaction from the node. It needs AdminKey.
func (c *HTTPClient) Evict(ctx context.Context, txid string) ([]pollr.Outpoint, error) {
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+"/evict/"+txid,
		nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	httpRequest.Header.Set("Authorization", "Bearer "+c.AdminKey)

	var response []pollr.Outpoint
	if err := c.do(httpRequest, &response); err != nil {
		return nil, errors.Wrap(err, "http post")
	}

	return response, nil
}

// post sends an HTTP POST request with a JSON body.
func (c *HTTPClient) post(ctx context.Context, path string, request,
	response interface{}) error {

	var body io.Reader
	if request != nil {
		js, err := json.Marshal(request)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(js)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+path, body)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	httpRequest.Header.Set("Content-Type", "application/json")

	return c.do(httpRequest, response)
}

// get sends an HTTP GET request.
func (c *HTTPClient) get(ctx context.Context, path string, response interface{}) error {
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL+path, nil)
	if err != nil {
		return errors.Wrap(err, "new request")
	}

	return c.do(httpRequest, response)
}

func (c *HTTPClient) do(httpRequest *http.Request, response interface{}) error {
	httpResponse, err := c.client.Do(httpRequest)
	if err != nil {
		return err
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		var errResponse struct {
			Error string `json:"error"`
		}
		json.NewDecoder(httpResponse.Body).Decode(&errResponse)

		if httpResponse.StatusCode == http.StatusNotFound {
			return errors.Wrap(ErrNotFound, errResponse.Error)
		}
		return &HTTPError{
			Status:  httpResponse.StatusCode,
			Message: errResponse.Error,
		}
	}

	if response != nil {
		if err := json.NewDecoder(httpResponse.Body).Decode(response); err != nil {
			return errors.Wrap(err, "decode response")
		}
	}

	return nil
}
