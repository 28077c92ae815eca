package httpserver

import "github.com/gorilla/mux"

// Namespace is the route prefix shared with the guest portal.
const Namespace = "/gms/v1"

type Server struct {
	Mux *mux.Router
	API *mux.Router
}

func New() *Server {
	m := mux.NewRouter()
	return &Server{Mux: m, API: m.PathPrefix(Namespace).Subrouter()}
}
