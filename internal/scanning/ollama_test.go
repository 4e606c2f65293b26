package scanning

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/bill-scanner/internal/receipt"
)

var _ = Describe("Ollama", func() {
	var (
		server     *ghttp.Server
		ollama     *Ollama
		encoded    string
		mimeType   string
		captured   ollamaChatRequest
		statusCode int
		response   any
		data       *receipt.ReceiptData
		err        error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var newErr error
		ollama, newErr = NewOllama(server.URL(), "llava")
		Expect(newErr).NotTo(HaveOccurred())

		encoded = base64.StdEncoding.EncodeToString([]byte("fake png data"))
		mimeType = "image/png"
		statusCode = http.StatusOK
		response = ollamaChatResponse{
			Message: ollamaMessage{Role: "assistant", Content: validReceiptJSON},
			Done:    true,
		}
		captured = ollamaChatRequest{}
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		server.AppendHandlers(ghttp.CombineHandlers(
			ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
			ghttp.VerifyContentType("application/json"),
			func(w http.ResponseWriter, r *http.Request) {
				body, readErr := io.ReadAll(r.Body)
				Expect(readErr).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &captured)).To(Succeed())
			},
			ghttp.RespondWithJSONEncodedPtr(&statusCode, &response),
		))
		data, err = ollama.Extract(context.Background(), encoded, mimeType)
	})

	When("extraction succeeds", func() {
		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should map the response", func() {
			Expect(data.MerchantName).To(Equal("ACME"))
			Expect(data.TotalAmount).To(Equal(3.5))
		})

		It("should attach the image to the user message", func() {
			Expect(captured.Messages).To(HaveLen(2))
			Expect(captured.Messages[1].Content).To(Equal(extractionPrompt))
			Expect(captured.Messages[1].Images).To(Equal([]string{encoded}))
		})

		It("should request schema constrained output at low temperature", func() {
			Expect(captured.Model).To(Equal("llava"))
			Expect(captured.Stream).To(BeFalse())
			Expect(captured.Options.Temperature).To(Equal(0.1))
			Expect(string(captured.Format)).To(MatchJSON(string(receiptJSONSchema)))
		})
	})

	When("the API returns an error status", func() {
		BeforeEach(func() {
			statusCode = http.StatusInternalServerError
			response = map[string]string{"error": "model not found"}
		})

		It("returns a TransportError", func() {
			var transportErr *TransportError
			Expect(errors.As(err, &transportErr)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("status 500"))
		})
	})

	When("the model answers with empty content", func() {
		BeforeEach(func() {
			response = ollamaChatResponse{Message: ollamaMessage{Role: "assistant"}, Done: true}
		})

		It("returns ErrEmptyResponse", func() {
			Expect(err).To(MatchError(ErrEmptyResponse))
		})
	})

	When("the model answers with prose", func() {
		BeforeEach(func() {
			response = ollamaChatResponse{Message: ollamaMessage{Role: "assistant", Content: "This is a receipt from ACME."}, Done: true}
		})

		It("returns a ParseError", func() {
			var parseErr *ParseError
			Expect(errors.As(err, &parseErr)).To(BeTrue())
		})
	})
})

var _ = Describe("receiptJSONSchema", func() {
	It("should describe the receipt as a JSON schema object", func() {
		var schema map[string]any
		Expect(json.Unmarshal(receiptJSONSchema, &schema)).To(Succeed())
		Expect(schema["type"]).To(Equal("object"))
		Expect(schema["required"]).To(ConsistOf("merchantName", "date", "totalAmount", "items"))

		props := schema["properties"].(map[string]any)
		items := props["items"].(map[string]any)
		Expect(items["type"]).To(Equal("array"))
		Expect(items["items"].(map[string]any)["required"]).To(ConsistOf("description", "quantity", "unitPrice", "totalPrice"))
	})
})
