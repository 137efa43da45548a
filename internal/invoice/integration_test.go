package invoice

import (
	"encoding/json"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/invoice-analyzer/internal/scanning"
)

var _ = Describe("Integration", func() {
	var (
		modelServer *ghttp.Server
		appServer   *ghttp.Server
		reply       string
	)

	BeforeEach(func() {
		modelServer = ghttp.NewServer()
		appServer = ghttp.NewServer()
	})

	AfterEach(func() {
		appServer.Close()
		modelServer.Close()
	})

	JustBeforeEach(func() {
		modelServer.AppendHandlers(ghttp.CombineHandlers(
			ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
			ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"message": map[string]string{"role": "assistant", "content": reply},
				"done":    true,
			}),
		))

		scanner, err := scanning.NewOllama(modelServer.URL(), "llava")
		Expect(err).NotTo(HaveOccurred())
		analyzer, err := NewAnalyzer(scanner, Config{})
		Expect(err).NotTo(HaveOccurred())
		appServer.AppendHandlers(NewServer(analyzer, ServerConfig{}).ServeHTTP)
	})

	analyze := func() Result {
		body, contentType := uploadBody("invoice.png", pngImage())
		resp, err := http.Post(appServer.URL()+"/api/invoices/analyze", contentType, body)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		respBody, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		var result Result
		Expect(json.Unmarshal(respBody, &result)).To(Succeed())
		return result
	}

	When("the model wraps the invoice in a markdown block", func() {
		BeforeEach(func() {
			reply = "Here is the extracted invoice:\n```json\n" + scenarioOneJSON + "\n```"
		})

		It("should upload, scan and return the invoice", func() {
			result := analyze()
			Expect(result.Fallback).To(BeFalse())
			Expect(result.Invoice.VendorName).To(Equal("Acme"))
			Expect(result.Invoice.TotalAmount).To(Equal(Number(150)))
			Expect(result.Invoice.Items[0].TotalPrice).To(Equal(Number(140)))
			Expect(modelServer.ReceivedRequests()).To(HaveLen(1))
		})
	})

	When("the model cannot read the invoice", func() {
		BeforeEach(func() {
			reply = "The image is too blurry to read."
		})

		It("should return the default invoice with the reason", func() {
			result := analyze()
			Expect(result.Fallback).To(BeTrue())
			Expect(result.Invoice.InvoiceNumber).To(Equal("N/A"))
			Expect(result.Failure.Kind).To(Equal(FailureExtraction))
		})
	})
})
