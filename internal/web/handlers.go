package web

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/billed-app/billed/internal/auth"
	"github.com/billed-app/billed/internal/bill"
	"github.com/billed-app/billed/internal/controller"
	"github.com/billed-app/billed/internal/logger"
	"github.com/billed-app/billed/internal/route"
	"github.com/billed-app/billed/internal/session"
	"github.com/billed-app/billed/internal/view"
)

// FileTooLargeMessage is shown next to the file input when an upload exceeds the size limit
const FileTooLargeMessage = "Le fichier est trop volumineux."

// page renders into a buffer so a template failure still yields a clean 500
func page(w http.ResponseWriter, code int, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		logger.Error("rendering page", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	w.Write(buf.Bytes())
}

func layout(store session.Store) view.Layout {
	current, _ := session.Current(store)
	return view.Layout{Email: current.Email}
}

func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Write(view.AppCSS)
}

// handleIndex shows the login form, or the home page of whoever is logged in
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, store *session.BackendStore) {
	if current, err := session.Current(store); err == nil {
		if current.Type == session.TypeAdmin {
			redirect(w, r, route.Dashboard)
		} else {
			redirect(w, r, route.Bills)
		}
		return
	}
	page(w, http.StatusOK, func(out io.Writer) error {
		return view.Login(out, view.LoginPage{})
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, store *session.BackendStore) {
	email := r.PostFormValue("email")
	current, err := s.deps.Auth.Login(r.Context(), email, r.PostFormValue("password"))
	countEvent("login", err)
	if err != nil {
		code := http.StatusUnauthorized
		message := "Email ou mot de passe incorrect"
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			logger.Error("logging in", zap.String("email", email), zap.Error(err))
			code = http.StatusInternalServerError
			message = err.Error()
		}
		page(w, code, func(out io.Writer) error {
			return view.Login(out, view.LoginPage{FormEmail: email, Error: message})
		})
		return
	}

	if err := session.Save(store, current); err != nil {
		logger.Error("saving session", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	logger.Info("logged in", zap.String("email", current.Email), zap.String("type", current.Type))
	if current.Type == session.TypeAdmin {
		redirect(w, r, route.Dashboard)
		return
	}
	redirect(w, r, route.Bills)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, store *session.BackendStore) {
	if err := s.deps.Sessions.Destroy(store.ID()); err != nil {
		logger.Warn("destroying session", zap.String("id", store.ID()), zap.Error(err))
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	redirect(w, r, route.Login)
}

func (s *Server) billsController(w http.ResponseWriter, r *http.Request, store session.Store, document *view.Document) *controller.Bills {
	return controller.NewBills(document, &redirectNavigator{w: w, r: r}, s.deps.Store, store,
		controller.WithFormatter(s.deps.Formatter))
}

// renderBills shows the bill list, or the store error verbatim when listing failed
func renderBills(w http.ResponseWriter, store session.Store, document *view.Document, rows []view.BillRow, err error) {
	p := view.BillsPage{Layout: layout(store), Data: rows, Modal: document.Modal}
	code := http.StatusOK
	if err != nil {
		logger.Error("listing bills", zap.Error(err))
		p.Error = err.Error()
		code = http.StatusInternalServerError
	}
	page(w, code, func(out io.Writer) error {
		return view.Bills(out, p)
	})
}

func (s *Server) handleBills(w http.ResponseWriter, r *http.Request, store *session.BackendStore) {
	document := view.NewDocument()
	seq, err := s.billsController(w, r, store, document).GetBills(r.Context())
	if err != nil {
		renderBills(w, store, document, nil, err)
		return
	}
	renderBills(w, store, document, slices.Collect(seq), nil)
}

// handleBillReceipt shows the bill list with the receipt of one bill open in the modal
func (s *Server) handleBillReceipt(w http.ResponseWriter, r *http.Request, store *session.BackendStore) {
	document := view.NewDocument()
	c := s.billsController(w, r, store, document)
	seq, err := c.GetBills(r.Context())
	if err != nil {
		renderBills(w, store, document, nil, err)
		return
	}
	rows := slices.Collect(seq)
	i := slices.IndexFunc(rows, func(row view.BillRow) bool { return row.ID == r.PathValue("id") })
	if i < 0 {
		http.Error(w, "Bill not found", http.StatusNotFound)
		return
	}
	c.HandleClickIconEye(view.EyeIcon(rows[i]))
	renderBills(w, store, document, rows, nil)
}

func (s *Server) handleClickNewBill(w http.ResponseWriter, r *http.Request, store *session.BackendStore) {
	s.billsController(w, r, store, nil).HandleClickNewBill()
}

func (s *Server) newBillController(w http.ResponseWriter, r *http.Request, store session.Store, document *view.Document) *controller.NewBill {
	opts := []controller.Option{controller.WithState(loadNewBillState(store))}
	if s.deps.Scanner != nil {
		opts = append(opts, controller.WithScanner(s.deps.Scanner))
	}
	return controller.NewNewBill(document, &redirectNavigator{w: w, r: r}, s.deps.Store, store, opts...)
}

func newBillPage(store session.Store, c *controller.NewBill, document *view.Document, form controller.NewBillForm) view.NewBillPage {
	state := c.State()
	return view.NewBillPage{
		Layout:    layout(store),
		Form:      form.Values(),
		FileName:  state.FileName,
		FileURL:   state.FileURL,
		FileError: document.FileError,
	}
}

func (s *Server) handleNewBill(w http.ResponseWriter, r *http.Request, store *session.BackendStore) {
	document := view.NewDocument()
	c := s.newBillController(w, r, store, document)
	p := newBillPage(store, c, document, c.Form())
	page(w, http.StatusOK, func(out io.Writer) error {
		return view.NewBill(out, p)
	})
}

var errFileTooLarge = errors.New("receipt file too large")

// readFileInput reads the "file" field of a multipart upload. It reports
// whether the request went over the upload size limit.
func (s *Server) readFileInput(w http.ResponseWriter, r *http.Request) (*controller.FileInput, bool) {
	input := &controller.FileInput{}
	limit := s.deps.MaxUploadSize
	if r.ContentLength > limit {
		return input, true
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return input, true
		}
		logger.Warn("parsing multipart form", zap.Error(err))
		return input, false
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		return input, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		logger.Error("reading uploaded file", zap.String("filename", header.Filename), zap.Error(err))
		return input, false
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = bill.ContentTypeFor(header.Filename)
	}
	input.Files = append(input.Files, bill.Upload{Name: header.Filename, ContentType: contentType, Data: data})
	return input, false
}

// handleNewBillFile validates and uploads the receipt picked on the new bill form
func (s *Server) handleNewBillFile(w http.ResponseWriter, r *http.Request, store *session.BackendStore) {
	document := view.NewDocument()
	c := s.newBillController(w, r, store, document)

	input, tooLarge := s.readFileInput(w, r)
	if tooLarge {
		countEvent("upload", errFileTooLarge)
		p := newBillPage(store, c, document, c.Form())
		p.FileError = FileTooLargeMessage
		page(w, http.StatusRequestEntityTooLarge, func(out io.Writer) error {
			return view.NewBill(out, p)
		})
		return
	}

	err := c.HandleChangeFile(r.Context(), input)
	countEvent("upload", err)
	if saveErr := saveNewBillState(store, c.State()); saveErr != nil {
		logger.Error("saving new bill state", zap.Error(saveErr))
	}
	if err == nil {
		redirect(w, r, route.NewBill)
		return
	}

	p := newBillPage(store, c, document, c.Form())
	code := http.StatusBadRequest
	switch {
	case errors.Is(err, controller.ErrUnsupportedFile):
	case errors.Is(err, controller.ErrNoFile):
		p.FileError = "Aucun fichier sélectionné."
	default:
		logger.Error("uploading receipt", zap.Error(err))
		p.Error = err.Error()
		code = http.StatusInternalServerError
	}
	page(w, code, func(out io.Writer) error {
		return view.NewBill(out, p)
	})
}

// handleSubmitNewBill creates the bill and returns to the list, or shows the form again with the errors
func (s *Server) handleSubmitNewBill(w http.ResponseWriter, r *http.Request, store *session.BackendStore) {
	document := view.NewDocument()
	c := s.newBillController(w, r, store, document)

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	form := controller.ReadNewBillForm(r.PostForm)

	err := c.HandleSubmit(r.Context(), form)
	countEvent("submit", err)
	if err == nil {
		if delErr := store.Delete(newBillKey); delErr != nil {
			logger.Warn("clearing new bill state", zap.Error(delErr))
		}
		return
	}

	p := newBillPage(store, c, document, form)
	code := http.StatusBadRequest
	var formErr *controller.FormError
	switch {
	case errors.As(err, &formErr):
		p.FieldErrs = formErr.Fields
	case errors.Is(err, bill.ErrInvalidBill):
		p.Error = err.Error()
	default:
		logger.Error("creating bill", zap.Error(err))
		p.Error = err.Error()
		code = http.StatusInternalServerError
	}
	page(w, code, func(out io.Writer) error {
		return view.NewBill(out, p)
	})
}

// handleFile serves a receipt to its owner or an administrator
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request, store *session.BackendStore) {
	current, err := session.Current(store)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	data, record, err := s.deps.Store.File(r.Context(), r.PathValue("key"))
	if err != nil {
		if !errors.Is(err, bill.ErrNotFound) {
			logger.Error("reading receipt file", zap.Error(err))
		}
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	if current.Type != session.TypeAdmin && record.Email != current.Email {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", record.ContentType)
	w.Write(data)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, store *session.BackendStore) {
	page(w, http.StatusOK, func(out io.Writer) error {
		return view.Dashboard(out, layout(store))
	})
}
