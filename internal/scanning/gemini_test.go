package scanning

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/bill-scanner/internal/receipt"
)

type fakeGenerator struct {
	calls int
	parts []genai.Part
	resp  *genai.GenerateContentResponse
	err   error
}

func (f *fakeGenerator) generate(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.parts = parts
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text(text)}}},
		},
	}
}

var _ = Describe("Gemini", func() {
	var (
		gen     *fakeGenerator
		gemini  *Gemini
		encoded string
		data    *receipt.ReceiptData
		err     error
	)

	BeforeEach(func() {
		gen = &fakeGenerator{resp: textResponse(validReceiptJSON)}
		gemini = &Gemini{apiKey: "test-key", generate: gen.generate}
		encoded = base64.StdEncoding.EncodeToString([]byte("fake image data"))
	})

	JustBeforeEach(func() {
		data, err = gemini.Extract(context.Background(), encoded, "image/jpeg")
	})

	When("extraction succeeds", func() {
		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should map the response", func() {
			Expect(data.MerchantName).To(Equal("ACME"))
			Expect(data.Items).To(HaveLen(2))
		})

		It("should send the decoded document and the instruction", func() {
			Expect(gen.parts).To(Equal([]genai.Part{
				genai.Blob{MIMEType: "image/jpeg", Data: []byte("fake image data")},
				genai.Text(extractionPrompt),
			}))
		})

		It("should call the service once", func() {
			Expect(gen.calls).To(Equal(1))
		})
	})

	When("called twice with the same input", func() {
		It("issues a fresh request each time", func() {
			_, secondErr := gemini.Extract(context.Background(), encoded, "image/jpeg")
			Expect(secondErr).NotTo(HaveOccurred())
			Expect(gen.calls).To(Equal(2))
		})
	})

	When("the API key is missing", func() {
		BeforeEach(func() {
			gemini.apiKey = ""
		})

		It("returns ErrConfiguration", func() {
			Expect(err).To(MatchError(ErrConfiguration))
		})

		It("should not call the service", func() {
			Expect(gen.calls).To(BeZero())
		})

		It("should not be a transport error", func() {
			var transportErr *TransportError
			Expect(errors.As(err, &transportErr)).To(BeFalse())
		})
	})

	When("constructed without an API key", func() {
		It("still fails with ErrConfiguration", func() {
			unconfigured, newErr := NewGemini("", "")
			Expect(newErr).NotTo(HaveOccurred())
			_, extractErr := unconfigured.Extract(context.Background(), encoded, "image/png")
			Expect(extractErr).To(MatchError(ErrConfiguration))
			Expect(unconfigured.Close()).To(Succeed())
		})
	})

	When("the service fails", func() {
		var setupErr error

		BeforeEach(func() {
			setupErr = errors.New("quota exceeded")
			gen.err = setupErr
		})

		It("returns a TransportError", func() {
			var transportErr *TransportError
			Expect(errors.As(err, &transportErr)).To(BeTrue())
		})

		It("keeps the message as-is", func() {
			Expect(err.Error()).To(Equal("quota exceeded"))
			Expect(err).To(MatchError(setupErr))
		})
	})

	When("the service returns no candidates", func() {
		BeforeEach(func() {
			gen.resp = &genai.GenerateContentResponse{}
		})

		It("returns ErrEmptyResponse", func() {
			Expect(err).To(MatchError(ErrEmptyResponse))
		})
	})

	When("the candidate has no content", func() {
		BeforeEach(func() {
			gen.resp = &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}
		})

		It("returns ErrEmptyResponse", func() {
			Expect(err).To(MatchError(ErrEmptyResponse))
		})
	})

	When("the text is not JSON", func() {
		BeforeEach(func() {
			gen.resp = textResponse("I could not read this receipt")
		})

		It("returns a ParseError", func() {
			var parseErr *ParseError
			Expect(errors.As(err, &parseErr)).To(BeTrue())
		})
	})

	When("the payload is not base64", func() {
		BeforeEach(func() {
			encoded = "not base64!!"
		})

		It("returns a ParseError without calling the service", func() {
			var parseErr *ParseError
			Expect(errors.As(err, &parseErr)).To(BeTrue())
			Expect(gen.calls).To(BeZero())
		})
	})
})

var _ = Describe("configureModel", func() {
	It("should request schema constrained JSON at low temperature", func() {
		model := &genai.GenerativeModel{}
		configureModel(model)

		Expect(model.Temperature).NotTo(BeNil())
		Expect(*model.Temperature).To(BeNumerically("~", 0.1, 0.0001))
		Expect(model.ResponseMIMEType).To(Equal("application/json"))
		Expect(model.ResponseSchema).To(BeIdenticalTo(ReceiptSchema))
	})
})

var _ = Describe("ReceiptSchema", func() {
	It("should require the core receipt fields", func() {
		Expect(ReceiptSchema.Required).To(ConsistOf("merchantName", "date", "totalAmount", "items"))
	})

	It("should require the core item fields", func() {
		items := ReceiptSchema.Properties["items"]
		Expect(items.Type).To(Equal(genai.TypeArray))
		Expect(items.Items.Required).To(ConsistOf("description", "quantity", "unitPrice", "totalPrice"))
	})

	It("should type monetary fields as numbers", func() {
		Expect(ReceiptSchema.Properties["taxAmount"].Type).To(Equal(genai.TypeNumber))
		Expect(ReceiptSchema.Properties["totalAmount"].Type).To(Equal(genai.TypeNumber))
	})
})
