package web

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/billed-app/billed/internal/controller"
	"github.com/billed-app/billed/internal/logger"
	"github.com/billed-app/billed/internal/route"
	"github.com/billed-app/billed/internal/session"
)

// SessionCookie names the cookie carrying the session id
const SessionCookie = "billed_session"

// newBillKey holds the receipt staged on the new bill form
const newBillKey = "newBill"

type sessionHandler func(w http.ResponseWriter, r *http.Request, store *session.BackendStore)

// withSession opens the session of the request, starting a new one when the cookie is missing
func (s *Server) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(SessionCookie); err == nil && session.ValidID(c.Value) {
			id = c.Value
		}
		if id == "" {
			id = session.NewID()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		store, err := session.Open(s.deps.Sessions, id)
		if err != nil {
			logger.Error("opening session", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		next(w, r, store)
	}
}

func (s *Server) requireRole(role string, next sessionHandler) http.HandlerFunc {
	return s.withSession(func(w http.ResponseWriter, r *http.Request, store *session.BackendStore) {
		current, err := session.Current(store)
		if err != nil || current.Type != role {
			redirect(w, r, route.Login)
			return
		}
		next(w, r, store)
	})
}

// requireEmployee sends anyone but a logged in employee to the login page
func (s *Server) requireEmployee(next sessionHandler) http.HandlerFunc {
	return s.requireRole(session.TypeEmployee, next)
}

// requireAdmin sends anyone but a logged in administrator to the login page
func (s *Server) requireAdmin(next sessionHandler) http.HandlerFunc {
	return s.requireRole(session.TypeAdmin, next)
}

func redirect(w http.ResponseWriter, r *http.Request, to route.Route) {
	http.Redirect(w, r, to.Path(), http.StatusSeeOther)
}

// redirectNavigator answers the request with a redirect to the first route it is given
type redirectNavigator struct {
	w    http.ResponseWriter
	r    *http.Request
	done bool
}

func (n *redirectNavigator) Navigate(to route.Route) {
	if n.done {
		return
	}
	n.done = true
	redirect(n.w, n.r, to)
}

func loadNewBillState(store session.Store) controller.NewBillState {
	var state controller.NewBillState
	raw, ok := store.Get(newBillKey)
	if !ok {
		return state
	}
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		logger.Warn("dropping unreadable new bill state", zap.Error(err))
		return controller.NewBillState{}
	}
	return state
}

func saveNewBillState(store session.Store, state controller.NewBillState) error {
	if !state.Staged() {
		return store.Delete(newBillKey)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return store.Set(newBillKey, string(data))
}
