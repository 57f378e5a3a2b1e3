package paymentgateway_test

import (
	"errors"
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jaaptech/nepalipay/internal"
	"github.com/jaaptech/nepalipay/internal/core/datamodel/gateway"
	"github.com/jaaptech/nepalipay/internal/paymentgateway"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

var _ = Describe("Registry", func() {
	var (
		registry *paymentgateway.Registry
		cfg      *internal.Config
	)

	BeforeEach(func() {
		cfg = &internal.Config{
			Gateways: internal.GatewaysConfig{
				Esewa: internal.EsewaConfig{
					ProductCode: "EPAYTEST",
					SecretKey:   "8gBm/:&EnhH.1/q",
				},
				Khalti: internal.KhaltiConfig{
					SecretKey: "khalti-secret",
				},
			},
		}
		registry = paymentgateway.NewRegistry(cfg, testLogger())
	})

	Describe("Make", func() {
		It("should build a client for a configured gateway", func() {
			client, err := registry.Make(gateway.Khalti)

			Expect(err).ToNot(HaveOccurred())
			Expect(client.Name()).To(Equal(gateway.Khalti))
		})

		It("should reuse the cached instance on subsequent calls", func() {
			first, err := registry.Make(gateway.Khalti)
			Expect(err).ToNot(HaveOccurred())

			second, err := registry.Make(gateway.Khalti)
			Expect(err).ToNot(HaveOccurred())

			Expect(first).To(BeIdenticalTo(second))
		})

		It("should cache per gateway, not globally", func() {
			khalti, err := registry.Make(gateway.Khalti)
			Expect(err).ToNot(HaveOccurred())

			esewa, err := registry.Make(gateway.Esewa)
			Expect(err).ToNot(HaveOccurred())

			Expect(khalti.Name()).ToNot(Equal(esewa.Name()))
		})

		It("should name the first missing credential", func() {
			cfg.Gateways.Khalti.SecretKey = ""
			registry = paymentgateway.NewRegistry(cfg, testLogger())

			_, err := registry.Make(gateway.Khalti)

			var confErr *paymentgateway.ConfigurationError
			Expect(errors.As(err, &confErr)).To(BeTrue())
			Expect(confErr.Gateway).To(Equal(gateway.Khalti))
			Expect(confErr.Field).To(Equal("secret_key"))
		})

		It("should not cache failed constructions", func() {
			cfg.Gateways.Khalti.SecretKey = ""
			registry = paymentgateway.NewRegistry(cfg, testLogger())

			_, err := registry.Make(gateway.Khalti)
			Expect(err).To(HaveOccurred())
			Expect(registry.IsCached(gateway.Khalti)).To(BeFalse())

			cfg.Gateways.Khalti.SecretKey = "now-set"
			_, err = registry.Make(gateway.Khalti)
			Expect(err).ToNot(HaveOccurred())
		})
	})

	Describe("Forget", func() {
		It("should evict the cached instance so the next Make rebuilds", func() {
			first, err := registry.Make(gateway.Khalti)
			Expect(err).ToNot(HaveOccurred())

			registry.Forget(gateway.Khalti)
			Expect(registry.IsCached(gateway.Khalti)).To(BeFalse())

			second, err := registry.Make(gateway.Khalti)
			Expect(err).ToNot(HaveOccurred())
			Expect(first).ToNot(BeIdenticalTo(second))
		})

		It("should be a no-op for a gateway that was never built", func() {
			Expect(func() { registry.Forget(gateway.ConnectIPS) }).ToNot(Panic())
		})
	})

	Describe("Flush", func() {
		It("should evict every cached instance", func() {
			_, err := registry.Make(gateway.Khalti)
			Expect(err).ToNot(HaveOccurred())
			_, err = registry.Make(gateway.Esewa)
			Expect(err).ToNot(HaveOccurred())

			registry.Flush()

			Expect(registry.IsCached(gateway.Khalti)).To(BeFalse())
			Expect(registry.IsCached(gateway.Esewa)).To(BeFalse())
		})
	})

	Describe("RequiredFields", func() {
		It("should list the credentials each gateway needs", func() {
			Expect(paymentgateway.RequiredFields(gateway.Esewa)).To(Equal([]string{"product_code", "secret_key"}))
			Expect(paymentgateway.RequiredFields(gateway.Khalti)).To(Equal([]string{"secret_key"}))
			Expect(paymentgateway.RequiredFields(gateway.ConnectIPS)).To(ContainElement("private_key_path"))
		})
	})
})
