package archive

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.etcd.io/bbolt"

	"github.com/zombor/bill-scanner/internal/database"
	"github.com/zombor/bill-scanner/internal/receipt"
)

var _ = Describe("BoltDB", func() {
	var (
		bolt  *bbolt.DB
		store *BoltDB
		scan  *Scan
	)

	BeforeEach(func() {
		var err error
		bolt, err = database.Open(filepath.Join(GinkgoT().TempDir(), "scans.db"))
		Expect(err).NotTo(HaveOccurred())
		store = NewBoltDB(bolt)

		scan = &Scan{
			ID:          "scan-1",
			Filename:    "bill.png",
			ContentType: "image/png",
			StoredFile:  "scan-1_bill.png",
			Receipt: &receipt.ReceiptData{
				MerchantName: "ACME",
				Date:         "2024-01-15",
				Currency:     "USD",
				TaxAmount:    0.5,
				TotalAmount:  3.5,
				Items: []receipt.ReceiptItem{
					{Description: "Milk", Quantity: 2, UnitPrice: 1.5, TotalPrice: 3},
				},
			},
			CreatedAt: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		}
	})

	AfterEach(func() {
		bolt.Close()
	})

	It("should round-trip a saved scan", func() {
		Expect(store.SaveScan(scan)).To(Succeed())

		got, err := store.GetScan("scan-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(scan))
	})

	It("should list saved scans", func() {
		Expect(store.SaveScan(scan)).To(Succeed())
		Expect(store.SaveScan(&Scan{ID: "scan-2"})).To(Succeed())

		scans, err := store.ListScans()
		Expect(err).NotTo(HaveOccurred())
		Expect(scans).To(HaveLen(2))
	})

	It("should return an empty list when nothing is saved", func() {
		scans, err := store.ListScans()
		Expect(err).NotTo(HaveOccurred())
		Expect(scans).To(BeEmpty())
	})

	It("returns ErrNotFound for unknown IDs", func() {
		_, err := store.GetScan("missing")
		Expect(err).To(MatchError(ErrNotFound))
	})

	Describe("DeleteScan", func() {
		It("should remove the scan", func() {
			Expect(store.SaveScan(scan)).To(Succeed())
			Expect(store.DeleteScan("scan-1")).To(Succeed())

			_, err := store.GetScan("scan-1")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("returns ErrNotFound for unknown IDs", func() {
			Expect(store.DeleteScan("missing")).To(MatchError(ErrNotFound))
		})
	})
})
