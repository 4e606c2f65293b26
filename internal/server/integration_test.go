package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"go.etcd.io/bbolt"

	"github.com/zombor/bill-scanner/internal/archive"
	"github.com/zombor/bill-scanner/internal/database"
	"github.com/zombor/bill-scanner/internal/extraction"
	"github.com/zombor/bill-scanner/internal/receipt"
	"github.com/zombor/bill-scanner/internal/server"
	"github.com/zombor/bill-scanner/internal/session"
)

// fakeExtractor stands in for the AI service
type fakeExtractor struct {
	data *receipt.ReceiptData
}

func (f *fakeExtractor) Extract(ctx context.Context, encoded string, mimeType string) (*receipt.ReceiptData, error) {
	return f.data, nil
}

var _ = Describe("Integration", func() {
	var (
		tempDir  string
		dbPath   string
		bolt     *bbolt.DB
		machine  *extraction.Machine
		srv      *server.Server
		ghServer *ghttp.Server
	)

	build := func() {
		var err error
		bolt, err = database.Open(dbPath)
		Expect(err).NotTo(HaveOccurred())

		sess, err := session.Open(session.NewBoltStore(bolt))
		Expect(err).NotTo(HaveOccurred())

		storage, err := archive.NewDirStorage(filepath.Join(tempDir, "scans"))
		Expect(err).NotTo(HaveOccurred())
		arch := archive.NewService(archive.NewBoltDB(bolt), storage)

		machine = extraction.New(&fakeExtractor{data: &receipt.ReceiptData{
			MerchantName: "Corner Store",
			Date:         "2024-03-20",
			Currency:     "EUR",
			TaxAmount:    1,
			TotalAmount:  11,
			Items: []receipt.ReceiptItem{
				{Description: `12" Pizza`, Quantity: 1, UnitPrice: 10, TotalPrice: 10},
			},
		}}, extraction.WithOnSuccess(arch.Recorder()))
		srv = server.NewServer(machine, sess, arch, server.Options{})
	}

	teardown := func() {
		machine.Wait()
		Expect(bolt.Close()).To(Succeed())
	}

	request := func(method, path string, body io.Reader, contentType string) *http.Response {
		ghServer.AppendHandlers(srv.ServeHTTP)
		req, err := http.NewRequest(method, ghServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	readBody := func(resp *http.Response) string {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return string(body)
	}

	currentPhase := func() string {
		var state struct {
			Phase string `json:"phase"`
		}
		Expect(json.Unmarshal([]byte(readBody(request(http.MethodGet, "/api/scan", nil, ""))), &state)).To(Succeed())
		return state.Phase
	}

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tempDir, "billscanner.db")
		ghServer = ghttp.NewServer()
		build()
	})

	AfterEach(func() {
		ghServer.Close()
		teardown()
	})

	It("should sign in, scan a bill and export it", func() {
		resp := request(http.MethodPost, "/api/session", bytes.NewBufferString(`{"email":"me@example.com"}`), "application/json")
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", "receipt.pdf")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write([]byte("%PDF-1.4 fake pdf content"))
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		resp = request(http.MethodPost, "/api/scan", body, writer.FormDataContentType())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

		Eventually(currentPhase).Should(Equal("success"))

		resp = request(http.MethodGet, "/api/scan/export.csv", nil, "")
		Expect(resp.Header.Get("Content-Disposition")).To(Equal("attachment; filename=bill_corner_store_2024-03-20.csv"))
		Expect(readBody(resp)).To(Equal("Description,Category,Quantity,Unit Price,Total Price\n" +
			`"12"" Pizza","",1,10.00,10.00` + "\n" +
			"\n" +
			"Subtotal,,,,10.00\n" +
			"Tax,,,,1.00\n" +
			"Grand Total,,,,11.00"))

		machine.Wait()
		var scans []*archive.Scan
		Expect(json.Unmarshal([]byte(readBody(request(http.MethodGet, "/api/scans", nil, ""))), &scans)).To(Succeed())
		Expect(scans).To(HaveLen(1))
		Expect(scans[0].ContentType).To(Equal("application/pdf"))

		resp = request(http.MethodGet, "/api/scans/"+scans[0].ID+"/file", nil, "")
		Expect(readBody(resp)).To(Equal("%PDF-1.4 fake pdf content"))
	})

	It("should keep the session across restarts until logout", func() {
		resp := request(http.MethodPost, "/api/session", bytes.NewBufferString(`{"email":"me@example.com"}`), "application/json")
		resp.Body.Close()

		teardown()
		build()

		resp = request(http.MethodGet, "/api/session", nil, "")
		Expect(readBody(resp)).To(MatchJSON(`{"email":"me@example.com"}`))

		resp = request(http.MethodDelete, "/api/session", nil, "")
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

		teardown()
		build()

		resp = request(http.MethodGet, "/api/session", nil, "")
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
	})
})
