package paymentgateway

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/jaaptech/nepalipay/internal"
	"github.com/jaaptech/nepalipay/internal/core/datamodel/gateway"
)

const (
	connectIPSTestBaseURL = "https://uat.connectips.com"
	connectIPSLiveBaseURL = "https://connectips.com"
)

// ConnectIPSClient implements the ConnectIPS creditor web service flow.
// Payment form fields carry an RSA-SHA256 token signed with the merchant's
// private key; verification validates the transaction server side with
// basic-auth credentials.
type ConnectIPSClient struct {
	cfg    internal.ConnectIPSConfig
	http   *http.Client
	logger *slog.Logger

	privateKey *rsa.PrivateKey
}

func NewConnectIPSClient(cfg internal.ConnectIPSConfig, logger *slog.Logger) (*ConnectIPSClient, error) {
	key, err := loadPrivateKey(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("connectips private key: %w", err)
	}

	return &ConnectIPSClient{
		cfg:        cfg,
		http:       newHTTPClient(),
		logger:     logger,
		privateKey: key,
	}, nil
}

func (c *ConnectIPSClient) Name() gateway.Gateway {
	return gateway.ConnectIPS
}

func (c *ConnectIPSClient) baseURL() string {
	if c.cfg.BaseURL != "" {
		return c.cfg.BaseURL
	}
	if c.cfg.Environment == internal.EnvironmentLive {
		return connectIPSLiveBaseURL
	}
	return connectIPSTestBaseURL
}

// Payment builds the signed login form payload for the gateway redirect.
func (c *ConnectIPSClient) Payment(_ context.Context, data map[string]interface{}) (*Response, error) {
	txnID := stringField(data, "transaction_uuid")
	if txnID == "" {
		txnID = stringField(data, "txn_id")
	}
	if txnID == "" {
		return nil, fmt.Errorf("connectips payment requires transaction_uuid or txn_id")
	}

	txnAmt := fmt.Sprintf("%v", data["total_amount"])

	message := fmt.Sprintf("MERCHANTID=%s,APPID=%s,APPNAME=%s,TXNID=%s,TXNDATE=%v,TXNCRNCY=NPR,TXNAMT=%s,REFERENCEID=%s,REMARKS=%v,PARTICULARS=%v,TOKEN=TOKEN",
		c.cfg.MerchantID, c.cfg.AppID, c.cfg.AppName, txnID,
		data["txn_date"], txnAmt, txnID, data["remarks"], data["particulars"])

	token, err := c.signToken(message)
	if err != nil {
		return nil, fmt.Errorf("connectips token signing: %w", err)
	}

	fields := map[string]interface{}{}
	for k, v := range data {
		fields[k] = v
	}
	fields["merchant_id"] = c.cfg.MerchantID
	fields["app_id"] = c.cfg.AppID
	fields["app_name"] = c.cfg.AppName
	fields["txn_id"] = txnID
	fields["txn_currency"] = "NPR"
	fields["token"] = token
	fields["payment_url"] = c.baseURL() + "/connectipswebgw/loginpage"

	return NewResponse(true, fields), nil
}

// Verify validates the transaction through the creditor validatetxn API.
func (c *ConnectIPSClient) Verify(ctx context.Context, data map[string]interface{}) (*Response, error) {
	txnID := stringField(data, "transaction_uuid")
	if txnID == "" {
		txnID = stringField(data, "txn_id")
	}

	body := map[string]interface{}{
		"merchantId":  c.cfg.MerchantID,
		"appId":       c.cfg.AppID,
		"referenceId": txnID,
		"txnAmt":      fmt.Sprintf("%v", data["total_amount"]),
	}

	headers := map[string]string{
		"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte(c.cfg.AppID+":"+c.cfg.Password)),
	}

	status, fields, err := postJSON(ctx, c.http, c.baseURL()+"/connectipswebws/api/creditor/validatetxn", headers, body)
	if err != nil {
		return nil, err
	}

	success := status == http.StatusOK && stringField(fields, "status") == "SUCCESS"

	return NewResponse(success, fields), nil
}

func (c *ConnectIPSClient) signToken(message string) (string, error) {
	digest := sha256.Sum256([]byte(message))
	sig, err := rsa.SignPKCS1v15(rand.Reader, c.privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key in %s is not RSA", path)
	}
	return key, nil
}
