package route

// Route is a logical page of the application
type Route string

const (
	Login     Route = "Login"
	Bills     Route = "Bills"
	NewBill   Route = "NewBill"
	Dashboard Route = "Dashboard"
)

var paths = map[Route]string{
	Login:     "/",
	Bills:     "/employee/bills",
	NewBill:   "/employee/bill/new",
	Dashboard: "/admin/dashboard",
}

// Path returns the URL path a route is served on
func (r Route) Path() string {
	if p, ok := paths[r]; ok {
		return p
	}
	return paths[Login]
}

// Navigator swaps the rendered content for the given route
type Navigator interface {
	Navigate(r Route)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(r Route)

func (f NavigatorFunc) Navigate(r Route) {
	f(r)
}
