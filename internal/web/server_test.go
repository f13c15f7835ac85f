package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/billed-app/billed/internal/auth"
	"github.com/billed-app/billed/internal/bill"
	"github.com/billed-app/billed/internal/session"
)

const employee = "employee@test.tld"

var _ = Describe("Server", func() {
	var (
		ctx         context.Context
		tempDir     string
		db          *bill.BoltDB
		store       *bill.Store
		deps        Deps
		basicAuth   BasicAuth
		ghttpServer *ghttp.Server
		client      *http.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		tempDir, err = os.MkdirTemp("", "billed-web-test-*")
		Expect(err).NotTo(HaveOccurred())

		db, err = bill.NewBoltDB(filepath.Join(tempDir, "billed.db"))
		Expect(err).NotTo(HaveOccurred())
		storage, err := bill.NewLocalStorage(filepath.Join(tempDir, "receipts"))
		Expect(err).NotTo(HaveOccurred())
		store = bill.NewStore(db, storage)

		users, err := auth.NewBoltUsers(db.Bolt())
		Expect(err).NotTo(HaveOccurred())
		backend, err := session.NewBoltBackend(db.Bolt())
		Expect(err).NotTo(HaveOccurred())

		deps = Deps{
			Store:    store,
			Auth:     auth.NewServiceWithCost(users, bcrypt.MinCost),
			Sessions: backend,
		}
		basicAuth = BasicAuth{}
		client = browser()
	})

	JustBeforeEach(func() {
		server := NewServerWithMux(deps, basicAuth, http.NewServeMux())
		ghttpServer = serve(server.ServeHTTP)
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		if db != nil {
			db.Close()
		}
		os.RemoveAll(tempDir)
	})

	body := func(resp *http.Response) string {
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return string(data)
	}

	login := func(email, password string) *http.Response {
		resp, err := client.PostForm(ghttpServer.URL()+"/login", url.Values{
			"email":    {email},
			"password": {password},
		})
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	get := func(path string) *http.Response {
		resp, err := client.Get(ghttpServer.URL() + path)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	upload := func(name string, data []byte) *http.Response {
		buf := &bytes.Buffer{}
		writer := multipart.NewWriter(buf)
		part, err := writer.CreateFormFile("file", name)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		resp, err := client.Post(ghttpServer.URL()+"/employee/bill/new/file", writer.FormDataContentType(), buf)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	seed := func(date string, status bill.Status) bill.Bill {
		b, err := store.Create(ctx, bill.Bill{
			Email:   employee,
			Type:    bill.TypeTransports,
			Name:    "trajet " + date,
			Amount:  decimal.NewFromInt(42),
			Date:    date,
			Status:  status,
			FileURL: "/files/receipt-" + date,
			PCT:     20,
		})
		Expect(err).NotTo(HaveOccurred())
		return b
	}

	Describe("login page", func() {
		It("should show the login form to visitors", func() {
			resp := get("/")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body(resp)).To(ContainSubstring(`data-testid="employee-email-input"`))
		})

		It("should send visitors of employee pages to the login form", func() {
			resp := get("/employee/bills")
			Expect(resp.Request.URL.Path).To(Equal("/"))
			Expect(body(resp)).To(ContainSubstring(`data-testid="form-employee"`))
		})
	})

	Describe("login", func() {
		It("should create the account and land on the bill list", func() {
			resp := login(employee, "secret")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Request.URL.Path).To(Equal("/employee/bills"))

			html := body(resp)
			Expect(html).To(ContainSubstring("Mes notes de frais"))
			Expect(html).To(MatchRegexp(`data-testid="icon-window" class="active-icon"`))
		})

		It("should reject a wrong password", func() {
			body(login(employee, "secret"))
			client = browser()

			resp := login(employee, "wrong")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(body(resp)).To(ContainSubstring(`data-testid="error-message"`))
		})

		It("should send a logged in employee from the home page to the bill list", func() {
			body(login(employee, "secret"))
			resp := get("/")
			Expect(resp.Request.URL.Path).To(Equal("/employee/bills"))
		})
	})

	Describe("logout", func() {
		It("should forget the session", func() {
			body(login(employee, "secret"))
			resp, err := client.Post(ghttpServer.URL()+"/logout", "", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Request.URL.Path).To(Equal("/"))
			body(resp)

			resp = get("/employee/bills")
			Expect(resp.Request.URL.Path).To(Equal("/"))
			body(resp)
		})
	})

	Describe("bill list", func() {
		BeforeEach(func() {
			seed("2001-01-01", bill.StatusRefused)
			seed("2004-04-04", bill.StatusPending)
			seed("2003-03-03", bill.StatusAccepted)
		})

		It("should show the employee's bills in French", func() {
			body(login(employee, "secret"))
			resp := get("/employee/bills")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			html := body(resp)
			Expect(html).To(ContainSubstring("4 Avr. 04"))
			Expect(html).To(ContainSubstring("En attente"))
			Expect(html).To(ContainSubstring("Refusé"))
			Expect(strings.Count(html, `data-testid="bill-date"`)).To(Equal(3))
		})

		It("should list the latest bill first across years", func() {
			seed("2023-01-09", bill.StatusPending)
			seed("2024-02-10", bill.StatusPending)
			body(login(employee, "secret"))

			html := body(get("/employee/bills"))
			Expect(strings.Index(html, "10 Fév. 24")).To(BeNumerically("<", strings.Index(html, "9 Jan. 23")))
			Expect(strings.Index(html, "9 Jan. 23")).To(BeNumerically("<", strings.Index(html, "4 Avr. 04")))
		})

		It("should not show other employees' bills", func() {
			body(login("other@test.tld", "secret"))
			html := body(get("/employee/bills"))
			Expect(html).NotTo(ContainSubstring(`data-testid="bill-date"`))
		})

		It("should open the receipt of a bill in the modal", func() {
			body(login(employee, "secret"))
			bills, err := store.List(ctx, employee)
			Expect(err).NotTo(HaveOccurred())

			resp := get("/employee/bills/" + bills[0].ID + "/receipt")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			html := body(resp)
			Expect(html).To(ContainSubstring(`modal fade show`))
			Expect(html).To(ContainSubstring(`<img width="400" src="` + bills[0].FileURL + `"`))
		})

		It("should return 404 for an unknown bill", func() {
			body(login(employee, "secret"))
			resp := get("/employee/bills/unknown/receipt")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			body(resp)
		})

		It("should open the new bill form from the button", func() {
			body(login(employee, "secret"))
			resp, err := client.Post(ghttpServer.URL()+"/employee/bills/new", "", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Request.URL.Path).To(Equal("/employee/bill/new"))
			Expect(body(resp)).To(ContainSubstring(`data-testid="form-new-bill"`))
		})
	})

	When("the store fails", func() {
		BeforeEach(func() {
			deps.Store = &failingStore{err: errors.New("Erreur 404")}
		})

		It("should show the error verbatim in the banner", func() {
			body(login(employee, "secret"))
			resp := get("/employee/bills")
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

			html := body(resp)
			Expect(html).To(ContainSubstring(`data-testid="error-message"`))
			Expect(html).To(ContainSubstring("Erreur 404"))
		})
	})

	Describe("new bill", func() {
		JustBeforeEach(func() {
			body(login(employee, "secret"))
		})

		It("should stage an uploaded png and create the bill", func() {
			resp := upload("image.png", []byte("fake png"))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Request.URL.Path).To(Equal("/employee/bill/new"))
			Expect(body(resp)).To(ContainSubstring(`data-testid="file-staged"`))

			resp, err := client.PostForm(ghttpServer.URL()+"/employee/bill/new", url.Values{
				"expense-type": {bill.TypeHotel},
				"expense-name": {"Hôtel Lyon"},
				"amount":       {"120,50"},
				"datepicker":   {"2022-06-01"},
				"vat":          {"20"},
				"pct":          {"20"},
				"commentary":   {"séminaire"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Request.URL.Path).To(Equal("/employee/bills"))
			Expect(body(resp)).To(ContainSubstring("Hôtel Lyon"))

			bills, err := store.List(ctx, employee)
			Expect(err).NotTo(HaveOccurred())
			Expect(bills).To(HaveLen(1))
			Expect(bills[0].Status).To(Equal(bill.StatusPending))
			Expect(bills[0].FileName).To(Equal("image.png"))
			Expect(bills[0].Amount.String()).To(Equal("120.5"))

			file := get(bills[0].FileURL)
			Expect(file.StatusCode).To(Equal(http.StatusOK))
			Expect(file.Header.Get("Content-Type")).To(Equal("image/png"))
			Expect(body(file)).To(Equal("fake png"))
		})

		When("the file is over the upload limit", func() {
			BeforeEach(func() {
				deps.MaxUploadSize = 1 << 10
			})

			It("should say the file is too large and stage nothing", func() {
				resp := upload("image.png", bytes.Repeat([]byte("x"), 4<<10))
				Expect(resp.StatusCode).To(Equal(http.StatusRequestEntityTooLarge))
				html := body(resp)
				Expect(html).To(ContainSubstring(FileTooLargeMessage))
				Expect(html).NotTo(ContainSubstring("Aucun fichier sélectionné."))
				Expect(html).NotTo(ContainSubstring(`data-testid="file-staged"`))
			})
		})

		It("should refuse a pdf and stage nothing", func() {
			resp := upload("image.pdf", []byte("%PDF"))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			html := body(resp)
			Expect(html).To(ContainSubstring(`data-testid="file-error"`))
			Expect(html).NotTo(ContainSubstring(`data-testid="file-staged"`))
		})

		It("should show the invalid fields again", func() {
			resp, err := client.PostForm(ghttpServer.URL()+"/employee/bill/new", url.Values{
				"expense-type": {bill.TypeHotel},
				"amount":       {"beaucoup"},
				"datepicker":   {"2022-06-01"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			html := body(resp)
			Expect(html).To(ContainSubstring("montant invalide"))
			Expect(html).To(ContainSubstring(`value="beaucoup"`))

			bills, err := store.List(ctx, employee)
			Expect(err).NotTo(HaveOccurred())
			Expect(bills).To(BeEmpty())
		})

		It("should not serve a receipt to another employee", func() {
			result, err := store.UploadFile(ctx, bill.Upload{Name: "image.png", Data: []byte("fake png")}, employee)
			Expect(err).NotTo(HaveOccurred())

			client = browser()
			body(login("other@test.tld", "secret"))
			resp := get(result.URL)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			body(resp)
		})
	})

	Describe("dashboard", func() {
		It("should keep employees out", func() {
			body(login(employee, "secret"))
			resp := get("/admin/dashboard")
			Expect(resp.Request.URL.Path).To(Equal("/employee/bills"))
			body(resp)
		})

		When("an administrator account was set up", func() {
			BeforeEach(func() {
				Expect(deps.Auth.EnsureAdmin(ctx, "admin@billed.fr", "admin")).To(Succeed())
			})

			It("should land the administrator on the dashboard", func() {
				resp := login("admin@billed.fr", "admin")
				Expect(resp.Request.URL.Path).To(Equal("/admin/dashboard"))
				Expect(body(resp)).To(ContainSubstring(`data-testid="dashboard-title"`))

				resp = get("/")
				Expect(resp.Request.URL.Path).To(Equal("/admin/dashboard"))
				body(resp)
			})

			It("should keep the administrator out of employee pages", func() {
				body(login("admin@billed.fr", "admin"))
				resp := get("/employee/bills")
				Expect(resp.Request.URL.Path).To(Equal("/admin/dashboard"))
				body(resp)
			})
		})
	})

	Describe("bill API", func() {
		var seeded bill.Bill

		BeforeEach(func() {
			seeded = seed("2004-04-04", bill.StatusPending)
			basicAuth = BasicAuth{Username: "admin", Password: "pass"}
		})

		apiRequest := func(method, path string, payload any) *http.Response {
			var reader io.Reader
			if payload != nil {
				data, err := json.Marshal(payload)
				Expect(err).NotTo(HaveOccurred())
				reader = bytes.NewReader(data)
			}
			req, err := http.NewRequest(method, ghttpServer.URL()+path, reader)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("admin", "pass")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		It("should require basic auth", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/bills")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
			body(resp)
		})

		It("should list every bill", func() {
			resp := apiRequest("GET", "/api/bills", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

			var bills []bill.Bill
			Expect(json.Unmarshal([]byte(body(resp)), &bills)).To(Succeed())
			Expect(bills).To(HaveLen(1))
			Expect(bills[0].ID).To(Equal(seeded.ID))
		})

		It("should return 404 for an unknown bill", func() {
			resp := apiRequest("GET", "/api/bills/nope", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			body(resp)
		})

		It("should let an administrator accept a bill", func() {
			update := seeded
			update.Status = bill.StatusAccepted
			update.CommentAdmin = "ok"

			resp := apiRequest("PUT", "/api/bills/"+seeded.ID, update)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body(resp)

			stored, err := store.Get(ctx, seeded.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(bill.StatusAccepted))
			Expect(stored.CommentAdmin).To(Equal("ok"))
			Expect(stored.Email).To(Equal(employee))
		})

		It("should reject an unknown status", func() {
			update := seeded
			update.Status = "lost"
			resp := apiRequest("PUT", "/api/bills/"+seeded.ID, update)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			body(resp)
		})

		It("should answer preflight requests", func() {
			req, err := http.NewRequest("OPTIONS", ghttpServer.URL()+"/api/bills", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			body(resp)
		})
	})

	Describe("metrics", func() {
		It("should expose response times", func() {
			body(get("/"))
			resp := get("/metrics")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body(resp)).To(ContainSubstring("billed_http_histogram_response_time_seconds"))
		})
	})
})
