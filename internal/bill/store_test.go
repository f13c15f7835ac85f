package bill

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("Store", func() {
	var (
		ctx     context.Context
		db      *mockDB
		storage *mockStorage
		now     time.Time
		store   *Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		db = newMockDB()
		storage = newMockStorage()
		now = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
		store = NewStoreWithDeps(db, storage, &mockIDGenerator{id: "key-123"}, &mockTimeSource{now: now})
	})

	Describe("Create", func() {
		var (
			input   Bill
			created Bill
			err     error
		)

		BeforeEach(func() {
			input = Bill{
				Email:  "a@a",
				Type:   TypeTransports,
				Name:   "train",
				Amount: decimal.NewFromInt(100),
				Date:   "2024-01-10",
				PCT:    20,
				Status: StatusPending,
			}
		})

		JustBeforeEach(func() {
			created, err = store.Create(ctx, input)
		})

		When("the bill is valid", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should generate an id", func() {
				Expect(created.ID).To(Equal("key-123"))
			})

			It("should stamp creation time", func() {
				Expect(created.CreatedAt).To(Equal(now))
				Expect(created.UpdatedAt).To(Equal(now))
			})

			It("should save the bill", func() {
				Expect(db.bills).To(HaveKey("key-123"))
			})
		})

		When("the bill carries the key of its uploaded receipt", func() {
			BeforeEach(func() {
				input.ID = "upload-key"
			})

			It("should keep that id", func() {
				Expect(created.ID).To(Equal("upload-key"))
			})
		})

		When("a bill with the same id exists", func() {
			BeforeEach(func() {
				input.ID = "dup"
				db.bills["dup"] = &Bill{ID: "dup"}
			})

			It("should refuse it", func() {
				Expect(errors.Is(err, ErrInvalidBill)).To(BeTrue())
			})
		})

		When("the date is not a calendar date", func() {
			BeforeEach(func() {
				input.Date = "2024-13-45"
			})

			It("should return ErrInvalidBill", func() {
				Expect(errors.Is(err, ErrInvalidBill)).To(BeTrue())
				Expect(db.bills).To(BeEmpty())
			})
		})

		When("the status is unknown", func() {
			BeforeEach(func() {
				input.Status = "archived"
			})

			It("should return ErrInvalidBill", func() {
				Expect(errors.Is(err, ErrInvalidBill)).To(BeTrue())
			})
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.saveErr = errors.New("disk full")
			})

			It("should wrap the error", func() {
				Expect(err).To(MatchError(ContainSubstring("disk full")))
			})
		})

		When("the context is cancelled", func() {
			BeforeEach(func() {
				cancelled, cancel := context.WithCancel(context.Background())
				cancel()
				ctx = cancelled
			})

			It("should not touch the database", func() {
				Expect(errors.Is(err, context.Canceled)).To(BeTrue())
				Expect(db.bills).To(BeEmpty())
			})
		})
	})

	Describe("Update", func() {
		BeforeEach(func() {
			db.bills["b1"] = &Bill{
				ID:        "b1",
				Email:     "a@a",
				Date:      "2024-01-01",
				Status:    StatusPending,
				CreatedAt: now.Add(-time.Hour),
			}
		})

		It("should keep the owner and creation time", func() {
			updated, err := store.Update(ctx, Bill{ID: "b1", Email: "other@b", Date: "2024-01-02", Status: StatusAccepted})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Email).To(Equal("a@a"))
			Expect(updated.CreatedAt).To(Equal(now.Add(-time.Hour)))
			Expect(updated.UpdatedAt).To(Equal(now))
			Expect(db.bills["b1"].Status).To(Equal(StatusAccepted))
		})

		It("should fail for an unknown bill", func() {
			_, err := store.Update(ctx, Bill{ID: "zz", Date: "2024-01-02", Status: StatusPending})
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			db.bills["1"] = &Bill{ID: "1", Email: "a@a"}
			db.bills["2"] = &Bill{ID: "2", Email: "b@b"}
		})

		It("should scope the list to the employee", func() {
			bills, err := store.List(ctx, "a@a")
			Expect(err).NotTo(HaveOccurred())
			Expect(bills).To(HaveLen(1))
			Expect(db.lastList).To(Equal("a@a"))
		})

		It("should return database errors", func() {
			db.listErr = errors.New("Erreur 500")
			_, err := store.List(ctx, "a@a")
			Expect(err).To(MatchError(ContainSubstring("Erreur 500")))
		})
	})

	Describe("UploadFile", func() {
		var (
			result UploadResult
			err    error
			upload Upload
		)

		BeforeEach(func() {
			upload = Upload{Name: "My Receipt!!.PNG", Data: []byte("image")}
		})

		JustBeforeEach(func() {
			result, err = store.UploadFile(ctx, upload, "a@a")
		})

		It("should return the file url and key", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Key).To(Equal("key-123"))
			Expect(result.URL).To(Equal("/files/key-123"))
		})

		It("should store the file under a sanitized name", func() {
			Expect(storage.files).To(HaveKey("key-123_My Receipt.png"))
		})

		It("should guess the content type from the name", func() {
			Expect(db.files["key-123"].ContentType).To(Equal("image/png"))
			Expect(db.files["key-123"].Email).To(Equal("a@a"))
		})

		When("the file record cannot be saved", func() {
			BeforeEach(func() {
				db.fileErr = errors.New("db down")
			})

			It("should remove the stored file", func() {
				Expect(err).To(HaveOccurred())
				Expect(storage.files).To(BeEmpty())
			})
		})

		When("storage fails", func() {
			BeforeEach(func() {
				storage.saveErr = errors.New("no space")
			})

			It("should return the error", func() {
				Expect(err).To(MatchError(ContainSubstring("no space")))
			})
		})
	})

	Describe("File", func() {
		It("should return the stored contents and record", func() {
			_, err := store.UploadFile(ctx, Upload{Name: "a.jpg", ContentType: "image/jpeg", Data: []byte("jpg")}, "a@a")
			Expect(err).NotTo(HaveOccurred())

			data, record, err := store.File(ctx, "key-123")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("jpg")))
			Expect(record.ContentType).To(Equal("image/jpeg"))
		})

		It("should return ErrNotFound for an unknown key", func() {
			_, _, err := store.File(ctx, "nope")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})
})

var _ = Describe("sanitizeFilename", func() {
	It("should strip special characters", func() {
		Expect(sanitizeFilename("note de frais (1).jpeg")).To(Equal("note de frais 1.jpeg"))
	})

	It("should fall back to receipt for empty names", func() {
		Expect(sanitizeFilename("???.png")).To(Equal("receipt.png"))
	})
})
