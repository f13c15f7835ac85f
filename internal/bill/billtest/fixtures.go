// Package billtest holds bills shared by the test suites.
package billtest

import (
	"github.com/shopspring/decimal"

	"github.com/billed-app/billed/internal/bill"
)

// Email owns every fixture bill
const Email = "a@a"

// Bills returns four bills of Email, deliberately not in date order
func Bills() []bill.Bill {
	return []bill.Bill{
		{
			ID:           "47qAXb6fIm2zOKkLzMro",
			VAT:          "80",
			FileURL:      "https://test.storage.tld/v0/b/billable-677b6.appspot.com/o/justificatifs%2Fpreview-facture-free-201801-pdf-1.jpg",
			Status:       bill.StatusPending,
			Type:         bill.TypeHotel,
			Commentary:   "séminaire billed",
			Name:         "encore",
			FileName:     "preview-facture-free-201801-pdf-1.jpg",
			Date:         "2004-04-04",
			Amount:       decimal.NewFromInt(400),
			CommentAdmin: "ok",
			Email:        Email,
			PCT:          20,
		},
		{
			ID:           "BeKy5Mo4jkmdfPGYpTxZ",
			VAT:          "",
			Amount:       decimal.NewFromInt(100),
			Name:         "test1",
			FileName:     "1592770761.jpeg",
			Commentary:   "plop",
			PCT:          20,
			Type:         bill.TypeTransports,
			Email:        Email,
			FileURL:      "https://test.storage.tld/v0/b/billable-677b6.appspot.com/o/justificatifs%2F1592770761.jpeg",
			Date:         "2001-01-01",
			Status:       bill.StatusRefused,
			CommentAdmin: "en fait non",
		},
		{
			ID:           "UIUZtnPQvnbFnB0ozvJh",
			Name:         "test3",
			Email:        Email,
			Type:         bill.TypeOnline,
			VAT:          "60",
			PCT:          20,
			CommentAdmin: "bon bah d'accord",
			Amount:       decimal.NewFromInt(300),
			Status:       bill.StatusAccepted,
			Date:         "2003-03-03",
			FileName:     "facture-client-php-exportee-dans-document-pdf-enregistre-sur-disque-dur.png",
			FileURL:      "https://test.storage.tld/v0/b/billable-677b6.appspot.com/o/justificatifs%2Ffacture-client-php-exportee-dans-document-pdf-enregistre-sur-disque-dur.png",
		},
		{
			ID:           "qcCK3SzECmaZAGRrHjaC",
			Status:       bill.StatusRefused,
			PCT:          20,
			Amount:       decimal.NewFromInt(200),
			Email:        Email,
			Name:         "test2",
			VAT:          "40",
			FileName:     "preview-facture-free-201801-pdf-1.jpg",
			Date:         "2002-02-02",
			CommentAdmin: "pas la bonne facture",
			Commentary:   "test2",
			Type:         bill.TypeRestaurants,
			FileURL:      "https://test.storage.tld/v0/b/billable-677b6.appspot.com/o/justificatifs%2Fpreview-facture-free-201801-pdf-1.jpg",
		},
	}
}
