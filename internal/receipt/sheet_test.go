package receipt

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NewSheet", func() {
	var (
		data  *ReceiptData
		sheet Sheet
	)

	BeforeEach(func() {
		data = sampleReceipt()
	})

	JustBeforeEach(func() {
		sheet = NewSheet(data)
	})

	It("should render the merchant, date and total cards", func() {
		Expect(sheet.Cards).To(Equal([]Card{
			{Label: "Merchant", Value: "ACME"},
			{Label: "Date", Value: "2024-01-01"},
			{Label: "Total", Value: "USD 3.50"},
		}))
	})

	It("should render item rows with fixed prices", func() {
		Expect(sheet.Rows).To(Equal([]SheetRow{
			{Description: "Milk", Category: "Food", Quantity: "2", UnitPrice: "1.50", TotalPrice: "3.00"},
		}))
	})

	It("should derive the subtotal from total and tax", func() {
		Expect(sheet.Footer).To(Equal(Footer{Subtotal: "3.00", Tax: "0.50", GrandTotal: "USD 3.50"}))
	})

	When("an item has no category", func() {
		BeforeEach(func() {
			data.Items[0].Category = ""
		})

		It("should show the default category", func() {
			Expect(sheet.Rows[0].Category).To(Equal("General"))
		})
	})

	When("item totals disagree with the receipt total", func() {
		BeforeEach(func() {
			data.Items[0].TotalPrice = 99
		})

		It("should not reconcile the subtotal against the items", func() {
			Expect(sheet.Footer.Subtotal).To(Equal("3.00"))
		})
	})

	When("the date is missing", func() {
		BeforeEach(func() {
			data.Date = ""
		})

		It("should show N/A", func() {
			Expect(sheet.Cards[1].Value).To(Equal("N/A"))
		})
	})

	When("the currency is missing", func() {
		BeforeEach(func() {
			data.Currency = ""
		})

		It("should show the bare amount", func() {
			Expect(sheet.Cards[2].Value).To(Equal("3.50"))
		})
	})

	When("a summary is present", func() {
		BeforeEach(func() {
			data.Summary = "Weekly groceries"
		})

		It("should pass it through", func() {
			Expect(sheet.Summary).To(Equal("Weekly groceries"))
		})
	})
})
