package paymentgateway_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jaaptech/nepalipay/internal"
	"github.com/jaaptech/nepalipay/internal/paymentgateway"
)

var _ = Describe("EsewaClient", func() {
	var client *paymentgateway.EsewaClient

	BeforeEach(func() {
		client = paymentgateway.NewEsewaClient(internal.EsewaConfig{
			ProductCode: "EPAYTEST",
			SecretKey:   "8gBm/:&EnhH.1/q",
		}, testLogger())
	})

	Describe("Payment", func() {
		It("should sign total_amount, transaction_uuid and product_code", func() {
			resp, err := client.Payment(context.Background(), map[string]interface{}{
				"total_amount":     "100",
				"transaction_uuid": "11-201-13",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeTrue())
			Expect(resp.Field("signature")).To(Equal("5DZywcrTKD0gia/rsSMcrRHmJl+4Tbol6S+lWgdJ94E="))
			Expect(resp.Field("signed_field_names")).To(Equal("total_amount,transaction_uuid,product_code"))
			Expect(resp.Field("product_code")).To(Equal("EPAYTEST"))
		})

		It("should point the redirect at the test form endpoint", func() {
			resp, err := client.Payment(context.Background(), map[string]interface{}{
				"total_amount":     "100",
				"transaction_uuid": "11-201-13",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Field("payment_url")).To(Equal("https://rc-epay.esewa.com.np/api/epay/main/v2/form"))
		})

		It("should require a transaction_uuid", func() {
			_, err := client.Payment(context.Background(), map[string]interface{}{
				"total_amount": "100",
			})

			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Verify", func() {
		It("should succeed only on a COMPLETE status", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/epay/transaction/status/"))
				Expect(r.URL.Query().Get("product_code")).To(Equal("EPAYTEST"))
				Expect(r.URL.Query().Get("transaction_uuid")).To(Equal("11-201-13"))
				json.NewEncoder(w).Encode(map[string]interface{}{
					"status":       "COMPLETE",
					"total_amount": 100,
					"ref_id":       "0001",
				})
			}))
			defer server.Close()

			client = paymentgateway.NewEsewaClient(internal.EsewaConfig{
				ProductCode: "EPAYTEST",
				SecretKey:   "secret",
				BaseURL:     server.URL,
			}, testLogger())

			resp, err := client.Verify(context.Background(), map[string]interface{}{
				"total_amount":     "100",
				"transaction_uuid": "11-201-13",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeTrue())
			Expect(resp.Field("ref_id")).To(Equal("0001"))
		})

		It("should fail on a pending status", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]interface{}{"status": "PENDING"})
			}))
			defer server.Close()

			client = paymentgateway.NewEsewaClient(internal.EsewaConfig{
				ProductCode: "EPAYTEST",
				SecretKey:   "secret",
				BaseURL:     server.URL,
			}, testLogger())

			resp, err := client.Verify(context.Background(), map[string]interface{}{
				"total_amount":     "100",
				"transaction_uuid": "11-201-13",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeFalse())
		})
	})
})

var _ = Describe("KhaltiClient", func() {
	newClient := func(baseURL string) *paymentgateway.KhaltiClient {
		return paymentgateway.NewKhaltiClient(internal.KhaltiConfig{
			SecretKey: "live_secret_key_test",
			BaseURL:   baseURL,
		}, testLogger())
	}

	Describe("Payment", func() {
		It("should initiate and succeed when a pidx comes back", func() {
			var gotAuth string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/v2/epayment/initiate/"))
				gotAuth = r.Header.Get("Authorization")
				json.NewEncoder(w).Encode(map[string]interface{}{
					"pidx":        "bZQLD9wRVWo4CdESSfuSsB",
					"payment_url": "https://test-pay.khalti.com/?pidx=bZQLD9wRVWo4CdESSfuSsB",
				})
			}))
			defer server.Close()

			resp, err := newClient(server.URL).Payment(context.Background(), map[string]interface{}{
				"amount":          150000,
				"purchase_order_id":   "order-1",
				"purchase_order_name": "test",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeTrue())
			Expect(resp.Field("pidx")).To(Equal("bZQLD9wRVWo4CdESSfuSsB"))
			Expect(gotAuth).To(Equal("Key live_secret_key_test"))
		})

		It("should fail when the gateway rejects the initiation", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"detail": "Amount should be greater than Rs. 10",
				})
			}))
			defer server.Close()

			resp, err := newClient(server.URL).Payment(context.Background(), map[string]interface{}{
				"amount": 1,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeFalse())
			Expect(resp.Field("detail")).To(Equal("Amount should be greater than Rs. 10"))
		})
	})

	Describe("Verify", func() {
		It("should look the payment up by pidx and require a Completed status", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/v2/epayment/lookup/"))
				var body map[string]interface{}
				Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
				Expect(body).To(HaveKeyWithValue("pidx", "px-77"))
				json.NewEncoder(w).Encode(map[string]interface{}{
					"pidx":           "px-77",
					"status":         "Completed",
					"transaction_id": "GFq9PFS7b2iYvL8Lir9oXe",
				})
			}))
			defer server.Close()

			resp, err := newClient(server.URL).Verify(context.Background(), map[string]interface{}{"pidx": "px-77"})

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeTrue())
		})

		It("should fail on any non-Completed status", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]interface{}{
					"pidx":   "px-77",
					"status": "Refunded",
				})
			}))
			defer server.Close()

			resp, err := newClient(server.URL).Verify(context.Background(), map[string]interface{}{"pidx": "px-77"})

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeFalse())
		})
	})
})

var _ = Describe("ConnectIPSClient", func() {
	var (
		keyPath string
		pubKey  *rsa.PublicKey
	)

	BeforeEach(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		Expect(err).ToNot(HaveOccurred())
		pubKey = &key.PublicKey

		dir := GinkgoT().TempDir()
		keyPath = filepath.Join(dir, "creditor.pem")
		pemBytes := pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		})
		Expect(os.WriteFile(keyPath, pemBytes, 0o600)).To(Succeed())
	})

	newClient := func(baseURL string) *paymentgateway.ConnectIPSClient {
		client, err := paymentgateway.NewConnectIPSClient(internal.ConnectIPSConfig{
			MerchantID:     "123",
			AppID:          "MER-123-APP-1",
			AppName:        "testapp",
			Password:       "app-password",
			PrivateKeyPath: keyPath,
			BaseURL:        baseURL,
		}, testLogger())
		Expect(err).ToNot(HaveOccurred())
		return client
	}

	It("should fail construction when the key file is missing", func() {
		_, err := paymentgateway.NewConnectIPSClient(internal.ConnectIPSConfig{
			MerchantID:     "123",
			AppID:          "MER-123-APP-1",
			AppName:        "testapp",
			Password:       "app-password",
			PrivateKeyPath: filepath.Join(GinkgoT().TempDir(), "missing.pem"),
		}, testLogger())

		Expect(err).To(HaveOccurred())
	})

	Describe("Payment", func() {
		It("should produce a token the merchant public key verifies", func() {
			resp, err := newClient("").Payment(context.Background(), map[string]interface{}{
				"transaction_uuid": "TXN-1",
				"total_amount":     "1000",
				"txn_date":         "29-08-2026",
				"remarks":          "RMKS-1",
				"particulars":      "PART-1",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeTrue())

			message := "MERCHANTID=123,APPID=MER-123-APP-1,APPNAME=testapp,TXNID=TXN-1,TXNDATE=29-08-2026,TXNCRNCY=NPR,TXNAMT=1000,REFERENCEID=TXN-1,REMARKS=RMKS-1,PARTICULARS=PART-1,TOKEN=TOKEN"
			digest := sha256.Sum256([]byte(message))
			sig, err := base64.StdEncoding.DecodeString(resp.Field("token"))
			Expect(err).ToNot(HaveOccurred())
			Expect(rsa.VerifyPKCS1v15(pubKey, crypto.SHA256, digest[:], sig)).To(Succeed())
		})

		It("should require a transaction identifier", func() {
			_, err := newClient("").Payment(context.Background(), map[string]interface{}{
				"total_amount": "1000",
			})

			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Verify", func() {
		It("should validate with basic auth and require a SUCCESS status", func() {
			var gotAuth string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/connectipswebws/api/creditor/validatetxn"))
				gotAuth = r.Header.Get("Authorization")
				json.NewEncoder(w).Encode(map[string]interface{}{"status": "SUCCESS"})
			}))
			defer server.Close()

			resp, err := newClient(server.URL).Verify(context.Background(), map[string]interface{}{
				"txn_id":       "TXN-1",
				"total_amount": "1000",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeTrue())

			expected := "Basic " + base64.StdEncoding.EncodeToString([]byte("MER-123-APP-1:app-password"))
			Expect(gotAuth).To(Equal(expected))
		})
	})
})
