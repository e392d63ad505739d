package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const defaultPinataAPIURL = "https://api.pinata.cloud"

// IPFSConfig configures the Pinata pinning client
type IPFSConfig struct {
	APIURL  string        `json:"api_url"`
	JWT     string        `json:"jwt"`
	Gateway string        `json:"gateway"`
	Timeout time.Duration `json:"timeout"`
}

// IPFSClient pins payloads to IPFS through the Pinata pinning API
type IPFSClient struct {
	httpClient *http.Client
	apiURL     string
	jwt        string
	gateway    string
}

type pinResponse struct {
	IpfsHash    string `json:"IpfsHash"`
	PinSize     int64  `json:"PinSize"`
	Timestamp   string `json:"Timestamp"`
	IsDuplicate bool   `json:"isDuplicate"`
}

// NewIPFSClient creates a Pinata-backed content store
func NewIPFSClient(config IPFSConfig) *IPFSClient {
	apiURL := strings.TrimRight(config.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultPinataAPIURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &IPFSClient{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     apiURL,
		jwt:        config.JWT,
		gateway:    strings.TrimRight(config.Gateway, "/"),
	}
}

// Publish pins obj as a single file and returns its CID
func (c *IPFSClient) Publish(ctx context.Context, obj Object) (string, error) {
	body, contentType, err := c.multipartBody(obj)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/pinning/pinFileToIPFS", body)
	if err != nil {
		return "", fmt.Errorf("failed to create pin request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach pinning service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("pinning service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var pin pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pin); err != nil {
		return "", fmt.Errorf("failed to decode pin response: %w", err)
	}
	if pin.IpfsHash == "" {
		return "", fmt.Errorf("pinning service returned no CID")
	}
	return pin.IpfsHash, nil
}

// GatewayURL returns the HTTP gateway address of a CID, or "" without a gateway
func (c *IPFSClient) GatewayURL(cid string) string {
	if c.gateway == "" {
		return ""
	}
	gw := c.gateway
	if !strings.HasPrefix(gw, "http://") && !strings.HasPrefix(gw, "https://") {
		gw = "https://" + gw
	}
	return gw + "/ipfs/" + cid
}

func (c *IPFSClient) multipartBody(obj Object) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, obj.Name))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(obj.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write file part: %w", err)
	}

	if err := w.WriteField("pinataOptions", `{"cidVersion":1}`); err != nil {
		return nil, "", fmt.Errorf("failed to write pin options: %w", err)
	}
	meta, err := json.Marshal(map[string]string{"name": obj.Name})
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode pin metadata: %w", err)
	}
	if err := w.WriteField("pinataMetadata", string(meta)); err != nil {
		return nil, "", fmt.Errorf("failed to write pin metadata: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
