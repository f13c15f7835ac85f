package controller

import (
	"context"
	"errors"
	"slices"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/billed-app/billed/internal/bill"
	"github.com/billed-app/billed/internal/bill/billtest"
	"github.com/billed-app/billed/internal/locale"
	"github.com/billed-app/billed/internal/route"
	"github.com/billed-app/billed/internal/session"
	"github.com/billed-app/billed/internal/view"
)

var _ = Describe("Bills", func() {
	var (
		ctx        context.Context
		document   *view.Document
		navigator  *mockNavigator
		client     *mockClient
		sessions   session.Store
		opts       []Option
		controller *Bills
	)

	BeforeEach(func() {
		ctx = context.Background()
		document = view.NewDocument()
		navigator = &mockNavigator{}
		client = &mockClient{bills: billtest.Bills()}
		sessions = employeeSession(billtest.Email)
		opts = nil
	})

	JustBeforeEach(func() {
		controller = NewBills(document, navigator, client, sessions, opts...)
	})

	Describe("GetBills", func() {
		It("should list the session employee's bills in store order", func() {
			seq, err := controller.GetBills(ctx)
			Expect(err).NotTo(HaveOccurred())
			rows := slices.Collect(seq)

			Expect(client.listEmail).To(Equal(billtest.Email))
			Expect(rows).To(HaveLen(4))
			ids := make([]string, 0, len(rows))
			for _, r := range rows {
				ids = append(ids, r.ID)
			}
			Expect(ids).To(Equal([]string{
				"47qAXb6fIm2zOKkLzMro", "BeKy5Mo4jkmdfPGYpTxZ", "UIUZtnPQvnbFnB0ozvJh", "qcCK3SzECmaZAGRrHjaC",
			}))
		})

		It("should format dates and statuses in French", func() {
			seq, err := controller.GetBills(ctx)
			Expect(err).NotTo(HaveOccurred())
			rows := slices.Collect(seq)

			Expect(rows[0].DisplayDate).To(Equal("4 Avr. 04"))
			Expect(rows[0].DisplayStatus).To(Equal("En attente"))
			Expect(rows[1].DisplayStatus).To(Equal("Refusé"))
			Expect(rows[2].DisplayStatus).To(Equal("Accepté"))
			Expect(rows[0].Date).To(Equal("2004-04-04"))
		})

		When("the English locale is used", func() {
			BeforeEach(func() {
				opts = []Option{WithFormatter(locale.English{})}
			})

			It("should keep ISO dates", func() {
				seq, err := controller.GetBills(ctx)
				Expect(err).NotTo(HaveOccurred())
				rows := slices.Collect(seq)
				Expect(rows[0].DisplayDate).To(Equal("2004-04-04"))
				Expect(rows[0].DisplayStatus).To(Equal("Pending"))
			})
		})

		When("a stored date is malformed", func() {
			BeforeEach(func() {
				client.bills[1].Date = "not-a-date"
			})

			It("should keep that date and format the others", func() {
				seq, err := controller.GetBills(ctx)
				Expect(err).NotTo(HaveOccurred())
				rows := slices.Collect(seq)

				Expect(rows).To(HaveLen(4))
				Expect(rows[1].DisplayDate).To(Equal("not-a-date"))
				Expect(rows[0].DisplayDate).To(Equal("4 Avr. 04"))
				Expect(rows[2].DisplayDate).To(Equal("3 Mar. 03"))
			})
		})

		When("the store rejects the request", func() {
			BeforeEach(func() {
				client.listErr = errors.New("Erreur 404")
			})

			It("should return the error as is", func() {
				seq, err := controller.GetBills(ctx)
				Expect(seq).To(BeNil())
				Expect(err).To(MatchError("Erreur 404"))
			})
		})

		When("there is no store", func() {
			JustBeforeEach(func() {
				controller = NewBills(document, navigator, nil, sessions)
			})

			It("should return no bills", func() {
				seq, err := controller.GetBills(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(slices.Collect(seq)).To(BeEmpty())
			})
		})

		When("nobody is logged in", func() {
			BeforeEach(func() {
				sessions = session.NewMemoryStore()
			})

			It("should return a session error", func() {
				_, err := controller.GetBills(ctx)
				Expect(err).To(MatchError(session.ErrNoSession))
			})
		})

		It("should stop formatting when the consumer stops", func() {
			seq, err := controller.GetBills(ctx)
			Expect(err).NotTo(HaveOccurred())
			var seen []bill.Bill
			for row := range seq {
				seen = append(seen, row.Bill)
				break
			}
			Expect(seen).To(HaveLen(1))
		})
	})

	Describe("HandleClickNewBill", func() {
		It("should navigate to the new bill form once", func() {
			controller.HandleClickNewBill()
			Expect(navigator.routes).To(Equal([]route.Route{route.NewBill}))
		})
	})

	Describe("HandleClickIconEye", func() {
		It("should show the receipt at half the modal width", func() {
			row := view.BillRow{Bill: billtest.Bills()[0]}
			controller.HandleClickIconEye(view.EyeIcon(row))

			Expect(document.Modal.Visible).To(BeTrue())
			Expect(document.Modal.ImageURL).To(Equal(row.FileURL))
			Expect(document.Modal.ImageWidth).To(Equal(400))
		})

		It("should floor odd widths", func() {
			document.Modal.Width = 801
			controller.HandleClickIconEye(view.Element{Attrs: map[string]string{view.BillURLAttr: "/files/x"}})
			Expect(document.Modal.ImageWidth).To(Equal(400))
		})

		It("should show an empty image when the icon has no url", func() {
			controller.HandleClickIconEye(view.Element{})
			Expect(document.Modal.Visible).To(BeTrue())
			Expect(document.Modal.ImageURL).To(BeEmpty())
		})
	})
})
